package domain

import "time"

type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Tiers lists tiers from lowest to highest.
var Tiers = []Tier{TierBronze, TierSilver, TierGold, TierPlatinum}

func (t Tier) Label() string {
	switch t {
	case TierPlatinum:
		return "Platinum - VIP Customer"
	case TierGold:
		return "Gold - High Value"
	case TierSilver:
		return "Silver - Growing"
	default:
		return "Bronze - Developing"
	}
}

func (t Tier) Rank() int {
	for i, v := range Tiers {
		if v == t {
			return i
		}
	}
	return -1
}

// TierThresholds are population percentiles of lifetime value.
type TierThresholds struct {
	Platinum float64 `json:"platinum"`
	Gold     float64 `json:"gold"`
	Silver   float64 `json:"silver"`
}

// TierFor places a value against the thresholds, highest band first.
func (t TierThresholds) TierFor(value float64) Tier {
	switch {
	case value >= t.Platinum:
		return TierPlatinum
	case value >= t.Gold:
		return TierGold
	case value >= t.Silver:
		return TierSilver
	default:
		return TierBronze
	}
}

// LtvBenchmarks summarize the active purchasing population.
type LtvBenchmarks struct {
	AvgLTV           float64        `json:"avg_ltv"`
	AvgFirstPurchase float64        `json:"avg_first_purchase"`
	Avg12mLTV        float64        `json:"avg_12m_ltv"`
	Avg24mLTV        float64        `json:"avg_24m_ltv"`
	Tiers            TierThresholds `json:"tier_thresholds"`
	ComputedAt       time.Time      `json:"computed_at"`
}

// LtvFeatures holds the normalized [0,1] signals next to the raw values
// they were derived from.
type LtvFeatures struct {
	FirstPurchaseValue float64 `json:"first_purchase_value"`
	EarlyFrequency     float64 `json:"early_frequency"`
	EngagementScore    float64 `json:"engagement_score"`
	SessionDepth       float64 `json:"session_depth"`
	CategoryDiversity  float64 `json:"category_diversity"`
	ChannelQuality     float64 `json:"channel_quality"`
	EmailEngagement    float64 `json:"email_engagement"`
	ReferralSource     float64 `json:"referral_source"`

	FirstPurchaseAmount float64 `json:"first_purchase_amount"`
	EarlyOrders         int     `json:"early_orders"`
	AvgPagesPerSession  float64 `json:"avg_pages_per_session"`
	CategoriesPurchased int     `json:"categories_purchased"`
	CurrentLTV          float64 `json:"current_ltv"`
	TotalOrders         int     `json:"total_orders"`
	CustomerAgeDays     int     `json:"customer_age_days"`
}

type LtvFactor struct {
	Factor      string `json:"factor"`
	Impact      string `json:"impact"`
	Description string `json:"description"`
}

type LtvPrediction struct {
	CustomerID       uint             `json:"customer_id"`
	CustomerUUID     string           `json:"customer_uuid"`
	CurrentLTV       float64          `json:"current_ltv"`
	Predicted12mLTV  float64          `json:"predicted_12m_ltv"`
	Predicted24mLTV  float64          `json:"predicted_24m_ltv"`
	GrowthPotential  float64          `json:"growth_potential"`
	WeightedScore    float64          `json:"weighted_score"`
	Tier             Tier             `json:"tier"`
	TierLabel        string           `json:"tier_label"`
	Confidence       Confidence       `json:"confidence"`
	DataQualityScore int              `json:"data_quality_score"`
	Features         LtvFeatures      `json:"features"`
	Factors          []LtvFactor      `json:"contributing_factors"`
	Recommendations  []Recommendation `json:"recommendations"`
	PredictedAt      time.Time        `json:"predicted_at"`
}

type LtvSegment struct {
	Segment         string  `json:"segment"`
	CustomerCount   int64   `json:"customer_count"`
	CurrentAvgLTV   float64 `json:"current_avg_ltv"`
	PredictedAvgLTV float64 `json:"predicted_avg_ltv"`
	TotalLTV        float64 `json:"total_ltv"`
	MinLTV          float64 `json:"min_ltv"`
	MaxLTV          float64 `json:"max_ltv"`
	GrowthPotential float64 `json:"growth_potential"`
}

type LtvCohort struct {
	Cohort        string  `json:"cohort"`
	AgeMonths     int     `json:"cohort_age_months"`
	CustomerCount int64   `json:"customer_count"`
	TotalLTV      float64 `json:"total_ltv"`
	AvgLTV        float64 `json:"avg_ltv"`
	AvgOrders     float64 `json:"avg_orders"`
	Projected12m  float64 `json:"projected_12m_ltv"`
	Projected24m  float64 `json:"projected_24m_ltv"`
	LtvPerMonth   float64 `json:"ltv_per_month"`
}

type TierBucket struct {
	Tier          Tier    `json:"tier"`
	Label         string  `json:"label"`
	Threshold     float64 `json:"threshold"`
	CustomerCount int64   `json:"customer_count"`
	TotalLTV      float64 `json:"total_ltv"`
	AvgLTV        float64 `json:"avg_ltv"`
}

// ValueStats aggregates lifetime value over a set of profiles.
type ValueStats struct {
	Count    int64   `json:"count"`
	TotalLTV float64 `json:"total_ltv"`
	AvgLTV   float64 `json:"avg_ltv"`
}
