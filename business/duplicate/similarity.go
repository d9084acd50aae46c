package duplicate

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/dotcypress/phonetics"

	"customerIntel/domain"
)

const phoneticBonus = 0.3

// nameSimilarity is 1 - editDistance/maxLen plus a bonus when both names
// sound alike, capped at 1. Names with no consonant sounds get no bonus.
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	sim := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if code := metaphone(a); code != "" && code == metaphone(b) {
		sim += phoneticBonus
	}
	return math.Min(1, math.Max(0, sim))
}

// addressSimilarity gives partial credit per location component present on both sides.
func addressSimilarity(a, b domain.CustomerProfile) float64 {
	var score float64
	if a.CountryCode != "" && b.CountryCode != "" && a.CountryCode == b.CountryCode {
		score += 0.3
	}
	if a.Region != "" && b.Region != "" && strings.EqualFold(a.Region, b.Region) {
		score += 0.3
	}
	if a.City != "" && b.City != "" && strings.EqualFold(a.City, b.City) {
		score += 0.2
	}
	if a.PostalCode != "" && b.PostalCode != "" && a.PostalCode == b.PostalCode {
		score += 0.2
	}
	return score
}

func deviceSet(p domain.CustomerProfile) map[string]struct{} {
	set := make(map[string]struct{}, len(p.LinkedDeviceIDs)+1)
	for _, d := range p.LinkedDeviceIDs {
		if d != "" {
			set[d] = struct{}{}
		}
	}
	if p.PrimaryDeviceID != "" {
		set[p.PrimaryDeviceID] = struct{}{}
	}
	return set
}

// deviceOverlap is the Jaccard index of the two device sets.
func deviceOverlap(a, b domain.CustomerProfile) float64 {
	da, db := deviceSet(a), deviceSet(b)
	if len(da) == 0 || len(db) == 0 {
		return 0
	}
	shared := 0
	for d := range da {
		if _, ok := db[d]; ok {
			shared++
		}
	}
	union := len(da) + len(db) - shared
	return float64(shared) / float64(union)
}

func behavioralSimilarity(a, b domain.CustomerProfile) float64 {
	var score float64
	if a.TotalOrders > 0 && b.TotalOrders > 0 {
		if avg := (a.AverageOrderValue + b.AverageOrderValue) / 2; avg > 0 {
			diff := math.Abs(a.AverageOrderValue - b.AverageOrderValue)
			score += (1 - math.Min(1, diff/avg)) * 0.5
		}
	}
	if a.EngagementScore != 0 && b.EngagementScore != 0 {
		diff := math.Abs(a.EngagementScore - b.EngagementScore)
		score += (1 - math.Min(1, diff/100)) * 0.3
	}
	if a.RFMSegment != "" && a.RFMSegment == b.RFMSegment {
		score += 0.2
	}
	return math.Min(1, score)
}

// metaphone encodes each word of s phonetically and joins the codes.
func metaphone(s string) string {
	words := strings.Fields(s)
	codes := make([]string, 0, len(words))
	for _, w := range words {
		if code := phonetics.EncodeMetaphone(w); code != "" {
			codes = append(codes, code)
		}
	}
	return strings.Join(codes, " ")
}
