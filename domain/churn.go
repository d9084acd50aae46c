package domain

import "time"

type RiskLevel string

const (
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevels lists levels from lowest to highest.
var RiskLevels = []RiskLevel{RiskMinimal, RiskLow, RiskMedium, RiskHigh, RiskCritical}

// RiskLevelFor maps a probability onto exactly one level.
func RiskLevelFor(p float64) RiskLevel {
	switch {
	case p >= 0.8:
		return RiskCritical
	case p >= 0.6:
		return RiskHigh
	case p >= 0.4:
		return RiskMedium
	case p >= 0.2:
		return RiskLow
	default:
		return RiskMinimal
	}
}

func ParseRiskLevel(s string) (RiskLevel, bool) {
	for _, l := range RiskLevels {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// Rank orders levels, minimal being 0.
func (l RiskLevel) Rank() int {
	for i, v := range RiskLevels {
		if v == l {
			return i
		}
	}
	return -1
}

func (l RiskLevel) Label() string {
	switch l {
	case RiskCritical:
		return "Critical - Immediate Action Required"
	case RiskHigh:
		return "High Risk - Needs Attention"
	case RiskMedium:
		return "Medium Risk - Monitor"
	case RiskLow:
		return "Low Risk"
	default:
		return "Minimal Risk"
	}
}

type ChurnFeatures struct {
	Recency               float64 `json:"recency"`
	FrequencyDecay        float64 `json:"frequency_decay"`
	EngagementDecline     float64 `json:"engagement_decline"`
	SupportIssues         float64 `json:"support_issues"`
	EmailDisengagement    float64 `json:"email_disengagement"`
	SessionDecline        float64 `json:"session_decline"`
	ValueDecline          float64 `json:"value_decline"`
	DaysSinceLastSeen     int     `json:"days_since_last_seen"`
	DaysSinceLastPurchase *int    `json:"days_since_last_purchase,omitempty"`
	TotalOrders           int     `json:"total_orders"`
	LifetimeValue         float64 `json:"lifetime_value"`
}

type ChurnFactor struct {
	Factor      string   `json:"factor"`
	Severity    Priority `json:"severity"`
	Description string   `json:"description"`
}

type ChurnPrediction struct {
	CustomerID      uint             `json:"customer_id"`
	CustomerUUID    string           `json:"customer_uuid"`
	Probability     float64          `json:"churn_probability"`
	RiskLevel       RiskLevel        `json:"risk_level"`
	RiskLabel       string           `json:"risk_label"`
	Features        ChurnFeatures    `json:"features"`
	Factors         []ChurnFactor    `json:"top_factors"`
	Recommendations []Recommendation `json:"recommendations"`
	PredictedAt     time.Time        `json:"predicted_at"`
}

type ChurnSegmentStats struct {
	Segment          string            `json:"segment"`
	CustomerCount    int               `json:"customer_count"`
	AvgProbability   float64           `json:"avg_churn_probability"`
	RiskDistribution map[RiskLevel]int `json:"risk_distribution"`
	ValueAtRisk      float64           `json:"value_at_risk"`
}

type ChurnCohort struct {
	Cohort               string  `json:"cohort"`
	TotalCustomers       int64   `json:"total_customers"`
	ActiveCustomers      int64   `json:"active_customers"`
	ChurnedCustomers     int64   `json:"churned_customers"`
	ActualChurnRate      float64 `json:"actual_churn_rate"`
	PredictedProbability float64 `json:"predicted_churn_probability"`
	RevenueAtRisk        float64 `json:"revenue_at_risk"`
}

type ChurnSummary struct {
	TotalCustomers   int64   `json:"total_customers"`
	AtRiskCustomers  int     `json:"at_risk_customers"`
	AtRiskPercentage float64 `json:"at_risk_percentage"`
	TotalValueAtRisk float64 `json:"total_value_at_risk"`
	AvgProbability   float64 `json:"avg_churn_probability"`
}

type ChurnDashboard struct {
	Summary          ChurnSummary        `json:"summary"`
	RiskDistribution map[RiskLevel]int   `json:"risk_distribution"`
	TopAtRisk        []ChurnPrediction   `json:"top_at_risk"`
	Segments         []ChurnSegmentStats `json:"segment_analysis"`
	GeneratedAt      time.Time           `json:"generated_at"`
}
