package domain

import (
	"time"

	"gorm.io/datatypes"
)

type MatchType string

const (
	MatchExactEmail        MatchType = "exact_email"
	MatchExactPhone        MatchType = "exact_phone"
	MatchFuzzyNameLocation MatchType = "fuzzy_name_location"
	MatchDeviceOverlap     MatchType = "device_overlap"
)

// MatchBand is the match-type classifier's label, stricter than Confidence.
type MatchBand string

const (
	BandDefinite MatchBand = "definite"
	BandLikely   MatchBand = "likely"
	BandPossible MatchBand = "possible"
	BandUnlikely MatchBand = "unlikely"
)

// BandFor classifies a match score: >=0.95 definite, >=0.85 likely, >=0.70 possible.
func BandFor(score float64) MatchBand {
	switch {
	case score >= 0.95:
		return BandDefinite
	case score >= 0.85:
		return BandLikely
	case score >= 0.70:
		return BandPossible
	default:
		return BandUnlikely
	}
}

// MatchConfidenceFor is the scoring-path label: >=0.90 high, >=0.70 medium.
func MatchConfidenceFor(score float64) Confidence {
	switch {
	case score >= 0.90:
		return ConfidenceHigh
	case score >= 0.70:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchMerged    MatchStatus = "merged"
	MatchDismissed MatchStatus = "dismissed"
)

// DuplicateMatch links two profiles. CustomerAID is always the smaller id.
type DuplicateMatch struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	CustomerAID   uint                        `gorm:"column:customer_a_id;not null;uniqueIndex:idx_duplicate_pair" json:"customer_a_id"`
	CustomerBID   uint                        `gorm:"column:customer_b_id;not null;uniqueIndex:idx_duplicate_pair" json:"customer_b_id"`
	Score         float64                     `gorm:"column:match_score;type:numeric" json:"match_score"`
	MatchType     MatchType                   `gorm:"column:match_type" json:"match_type"`
	Band          MatchBand                   `gorm:"column:match_band" json:"match_band"`
	Confidence    Confidence                  `gorm:"column:confidence" json:"confidence"`
	MatchedFields datatypes.JSONSlice[string] `gorm:"column:matched_fields" json:"matched_fields"`
	Status        MatchStatus                 `gorm:"column:status;default:pending;index" json:"status"`
	ResolvedAt    *time.Time                  `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	CreatedAt     time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (DuplicateMatch) TableName() string {
	return "customer_duplicate_matches"
}

// NewDuplicateMatch builds a pending match with the pair in canonical order.
func NewDuplicateMatch(idA, idB uint, score float64, matchType MatchType, fields []string) DuplicateMatch {
	if idB < idA {
		idA, idB = idB, idA
	}
	return DuplicateMatch{
		CustomerAID:   idA,
		CustomerBID:   idB,
		Score:         score,
		MatchType:     matchType,
		Band:          BandFor(score),
		Confidence:    MatchConfidenceFor(score),
		MatchedFields: fields,
		Status:        MatchPending,
	}
}

// DuplicateCandidate is one profile found to possibly match a subject profile.
type DuplicateCandidate struct {
	Customer   CustomerProfile `json:"customer"`
	Score      float64         `json:"match_score"`
	MatchType  MatchType       `json:"match_type"`
	Confidence Confidence      `json:"confidence"`
	Band       MatchBand       `json:"band"`
}

// DuplicateGroup is a set of profiles believed to be one person.
type DuplicateGroup struct {
	MatchType  MatchType         `json:"match_type"`
	Score      float64           `json:"match_score"`
	Confidence Confidence        `json:"confidence"`
	Band       MatchBand         `json:"band"`
	Customers  []CustomerProfile `json:"customers"`
	PrimaryID  uint              `json:"primary_id"`
}

type DuplicateStats struct {
	TotalGroups         int                `json:"total_groups"`
	ByConfidence        map[Confidence]int `json:"by_confidence"`
	ByType              map[MatchType]int  `json:"by_type"`
	PotentialDuplicates int                `json:"potential_duplicates"`
	TotalCustomers      int64              `json:"total_customers"`
	DuplicatePercentage float64            `json:"duplicate_percentage"`
	PendingMatches      int64              `json:"pending_matches"`
	AutoMergeableGroups int                `json:"auto_mergeable_groups"`
}

type AutoMergeResult struct {
	Merged  int `json:"merged"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}
