package customer

import (
	"strconv"
	"time"

	"customerIntel/domain"
)

// rfmSegments is checked in order; the first list containing the code wins.
var rfmSegments = []struct {
	name  string
	codes []string
}{
	{"Champions", []string{"555", "554", "544", "545", "454", "455", "445"}},
	{"Loyal", []string{"543", "444", "435", "355", "354", "345", "344", "335"}},
	{"Potential Loyalist", []string{"553", "551", "552", "541", "542", "533", "532", "531", "452", "451", "442", "441", "431", "453", "443"}},
	{"New Customers", []string{"512", "511", "422", "421", "412", "411", "311"}},
	{"Promising", []string{"525", "524", "523", "522", "521", "515", "514", "513", "425", "424", "413", "414", "415", "315", "314", "313"}},
	{"Need Attention", []string{"535", "534", "443", "434", "343", "334", "325", "324"}},
	{"About To Sleep", []string{"331", "321", "312", "221", "213", "231", "241", "251"}},
	{"At Risk", []string{"255", "254", "245", "244", "253", "252", "243", "242", "235", "234", "225", "224", "153", "152", "145", "143", "142", "135", "134", "133", "125", "124"}},
	{"Cannot Lose Them", []string{"155", "154", "144", "214", "215", "115", "114", "113"}},
	{"Hibernating", []string{"332", "322", "231", "241", "251", "233", "232", "223", "222", "132", "123", "122", "212", "211"}},
	{"Lost", []string{"111", "112", "121", "131", "141", "151"}},
}

const rfmOther = "Other"

func recencyScore(days int) int {
	switch {
	case days <= 30:
		return 5
	case days <= 60:
		return 4
	case days <= 90:
		return 3
	case days <= 180:
		return 2
	default:
		return 1
	}
}

func frequencyScore(orders int) int {
	switch {
	case orders >= 10:
		return 5
	case orders >= 5:
		return 4
	case orders >= 3:
		return 3
	case orders >= 2:
		return 2
	default:
		return 1
	}
}

func monetaryScore(spent float64) int {
	switch {
	case spent >= 1000:
		return 5
	case spent >= 500:
		return 4
	case spent >= 200:
		return 3
	case spent >= 50:
		return 2
	default:
		return 1
	}
}

// RFMSegment names the segment for a three-digit R/F/M code.
func RFMSegment(code string) string {
	for _, seg := range rfmSegments {
		for _, c := range seg.codes {
			if c == code {
				return seg.name
			}
		}
	}
	return rfmOther
}

// ScoreRFM sets the recency, frequency and monetary scores and the derived segment.
func ScoreRFM(p *domain.CustomerProfile, now time.Time) {
	recency, ok := daysSince(p.LastPurchaseAt, now)
	if !ok {
		recency = 365
	}

	p.RFMRecencyScore = recencyScore(recency)
	p.RFMFrequencyScore = frequencyScore(p.TotalOrders)
	p.RFMMonetaryScore = monetaryScore(p.TotalSpent)
	p.RFMScore = p.RFMRecencyScore + p.RFMFrequencyScore + p.RFMMonetaryScore

	code := strconv.Itoa(p.RFMRecencyScore) + strconv.Itoa(p.RFMFrequencyScore) + strconv.Itoa(p.RFMMonetaryScore)
	p.RFMSegment = RFMSegment(code)
}
