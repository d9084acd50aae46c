package duplicate

import (
	"customerIntel/domain"
)

const (
	weightEmail    = 50.0
	weightPhone    = 40.0
	weightName     = 25.0
	weightAddress  = 15.0
	weightDevice   = 10.0
	weightBehavior = 10.0
	totalWeight    = weightEmail + weightPhone + weightName + weightAddress + weightDevice + weightBehavior

	// per-signal levels at which a field is reported as matched
	nameMatchLevel     = 0.8
	addressMatchLevel  = 0.5
	behaviorMatchLevel = 0.5
)

// Subject is a profile with its decrypted, lowercased full name.
type Subject struct {
	Profile domain.CustomerProfile
	Name    string
}

func sameEmail(a, b domain.CustomerProfile) bool {
	return a.EmailHash != "" && a.EmailHash == b.EmailHash
}

func samePhone(a, b domain.CustomerProfile) bool {
	return a.PhoneHash != "" && a.PhoneHash == b.PhoneHash
}

// Score is the normalized weighted match score of two profiles in [0,1].
// Profiles sharing an email hash are the same person and score 1.
func Score(a, b Subject) float64 {
	if sameEmail(a.Profile, b.Profile) {
		return 1
	}

	var score float64
	if samePhone(a.Profile, b.Profile) {
		score += weightPhone
	}
	score += weightName * nameSimilarity(a.Name, b.Name)
	score += weightAddress * addressSimilarity(a.Profile, b.Profile)
	score += weightDevice * deviceOverlap(a.Profile, b.Profile)
	score += weightBehavior * behavioralSimilarity(a.Profile, b.Profile)
	return score / totalWeight
}

// MatchedFields names the signals that agree between two profiles.
func MatchedFields(a, b Subject) []string {
	fields := []string{}
	if sameEmail(a.Profile, b.Profile) {
		fields = append(fields, "email")
	}
	if samePhone(a.Profile, b.Profile) {
		fields = append(fields, "phone")
	}
	if nameSimilarity(a.Name, b.Name) >= nameMatchLevel {
		fields = append(fields, "name")
	}
	if addressSimilarity(a.Profile, b.Profile) >= addressMatchLevel {
		fields = append(fields, "location")
	}
	if deviceOverlap(a.Profile, b.Profile) > 0 {
		fields = append(fields, "device")
	}
	if behavioralSimilarity(a.Profile, b.Profile) >= behaviorMatchLevel {
		fields = append(fields, "behavior")
	}
	return fields
}
