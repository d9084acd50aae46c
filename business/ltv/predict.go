package ltv

import (
	"fmt"
	"math"

	"customerIntel/domain"
)

const (
	weightFirstPurchase     = 0.20
	weightEarlyFrequency    = 0.25
	weightEngagement        = 0.15
	weightSessionDepth      = 0.10
	weightCategoryDiversity = 0.10
	weightChannelQuality    = 0.10
	weightEmailEngagement   = 0.05
	weightReferral          = 0.05

	// customers younger than this lean on population benchmarks
	youngCustomerDays = 90
	daysPerMonth      = 30.0
)

// Projection is the value forecast for one customer.
type Projection struct {
	WeightedScore   float64
	MonthlyVelocity float64
	Predicted12m    float64
	Predicted24m    float64
	// GrowthPotential is a percentage of current value.
	GrowthPotential float64
}

func weightedScore(f domain.LtvFeatures) float64 {
	return clamp01(f.FirstPurchaseValue*weightFirstPurchase +
		f.EarlyFrequency*weightEarlyFrequency +
		f.EngagementScore*weightEngagement +
		f.SessionDepth*weightSessionDepth +
		f.CategoryDiversity*weightCategoryDiversity +
		f.ChannelQuality*weightChannelQuality +
		f.EmailEngagement*weightEmailEngagement +
		f.ReferralSource*weightReferral)
}

// Project scales the customer's own monthly value velocity by a multiplier in
// [0.5, 1.5]. Young customers are floored by the benchmark averages.
func Project(f domain.LtvFeatures, b domain.LtvBenchmarks) Projection {
	ws := weightedScore(f)
	current := math.Max(0, f.CurrentLTV)

	monthsActive := math.Max(1, float64(f.CustomerAgeDays)/daysPerMonth)
	velocity := current / monthsActive * (0.5 + ws)

	p12 := current + velocity*12
	p24 := current + velocity*24
	if f.CustomerAgeDays < youngCustomerDays {
		benchmarkMultiplier := ws * 2
		p12 = math.Max(p12, b.Avg12mLTV*benchmarkMultiplier)
		p24 = math.Max(p24, b.Avg24mLTV*benchmarkMultiplier)
	}

	var growth float64
	switch {
	case current > 0:
		growth = (p12 - current) / current * 100
	case p12 > 0:
		growth = 100
	}

	return Projection{
		WeightedScore:   ws,
		MonthlyVelocity: velocity,
		Predicted12m:    p12,
		Predicted24m:    p24,
		GrowthPotential: growth,
	}
}

// ConfidenceFor counts the available history signals.
func ConfidenceFor(f domain.LtvFeatures, p domain.CustomerProfile) domain.Confidence {
	points := 0
	if f.CustomerAgeDays > youngCustomerDays {
		points++
	}
	if f.TotalOrders >= 3 {
		points++
	}
	if f.EngagementScore > 0.3 {
		points++
	}
	if f.SessionDepth > 0.3 {
		points++
	}
	if p.EmailHash != "" {
		points++
	}

	switch {
	case points >= 4:
		return domain.ConfidenceHigh
	case points >= 2:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// DataQualityScore is the 0-100 display score over the same signals.
func DataQualityScore(f domain.LtvFeatures, p domain.CustomerProfile) int {
	score := math.Min(1, float64(f.CustomerAgeDays)/180) * 30
	score += math.Min(1, float64(f.TotalOrders)/5) * 30
	if f.EngagementScore > 0 {
		score += 15
	}
	if p.EmailsSent > 0 {
		score += 10
	}
	if p.FirstName != "" || p.EmailHash != "" {
		score += 15
	}
	return int(math.Round(math.Min(100, score)))
}

func Factors(f domain.LtvFeatures) []domain.LtvFactor {
	factors := []domain.LtvFactor{}
	if f.FirstPurchaseValue > 0.7 {
		factors = append(factors, domain.LtvFactor{
			Factor:      "High Initial Purchase Value",
			Impact:      "positive",
			Description: fmt.Sprintf("First purchase of $%.2f indicates strong buying intent", f.FirstPurchaseAmount),
		})
	}
	if f.EarlyFrequency > 0.5 {
		factors = append(factors, domain.LtvFactor{
			Factor:      "Strong Early Engagement",
			Impact:      "positive",
			Description: fmt.Sprintf("%d orders in first 30 days shows repeat behavior", f.EarlyOrders),
		})
	}
	if f.EngagementScore > 0.6 {
		factors = append(factors, domain.LtvFactor{
			Factor:      "High Engagement",
			Impact:      "positive",
			Description: "Active browsing and interaction patterns",
		})
	}
	if f.CategoryDiversity > 0.4 {
		factors = append(factors, domain.LtvFactor{
			Factor:      "Category Explorer",
			Impact:      "positive",
			Description: fmt.Sprintf("Purchased from %d different categories", f.CategoriesPurchased),
		})
	}
	if f.ChannelQuality > 0.7 {
		factors = append(factors, domain.LtvFactor{
			Factor:      "High-Quality Acquisition",
			Impact:      "positive",
			Description: "Organic or direct traffic source",
		})
	}
	if f.ReferralSource > 0 {
		factors = append(factors, domain.LtvFactor{
			Factor:      "Referred Customer",
			Impact:      "positive",
			Description: "Referred customers typically have 25% higher LTV",
		})
	}

	if f.EarlyFrequency < 0.3 && f.CustomerAgeDays > 60 {
		factors = append(factors, domain.LtvFactor{
			Factor:      "Low Early Engagement",
			Impact:      "negative",
			Description: "Few repeat purchases in first 60 days",
		})
	}
	if f.EmailEngagement < 0.3 {
		factors = append(factors, domain.LtvFactor{
			Factor:      "Low Email Engagement",
			Impact:      "negative",
			Description: "Not engaging with email communications",
		})
	}
	return factors
}

func Recommendations(f domain.LtvFeatures, tier domain.Tier) []domain.Recommendation {
	recs := []domain.Recommendation{}
	if f.EmailEngagement < 0.5 {
		recs = append(recs, domain.Recommendation{
			Action:         "email_re_engagement",
			Priority:       domain.PriorityHigh,
			ExpectedImpact: "+15% LTV",
			Description:    "Implement email re-engagement campaign",
		})
	}
	if f.CategoryDiversity < 0.3 {
		recs = append(recs, domain.Recommendation{
			Action:         "cross_sell",
			Priority:       domain.PriorityHigh,
			ExpectedImpact: "+20% LTV",
			Description:    "Recommend products from unexplored categories",
		})
	}
	if tier == domain.TierSilver || tier == domain.TierGold {
		recs = append(recs, domain.Recommendation{
			Action:         "loyalty_program",
			Priority:       domain.PriorityMedium,
			ExpectedImpact: "+10% LTV",
			Description:    "Enroll in loyalty program for tier upgrade",
		})
	}
	if f.EarlyFrequency > 0.5 && tier != domain.TierPlatinum {
		recs = append(recs, domain.Recommendation{
			Action:         "subscription_offer",
			Priority:       domain.PriorityMedium,
			ExpectedImpact: "+30% LTV",
			Description:    "Offer subscription for frequently purchased items",
		})
	}
	if f.SessionDepth > 0.5 && f.TotalOrders < 3 {
		recs = append(recs, domain.Recommendation{
			Action:         "conversion_optimization",
			Priority:       domain.PriorityHigh,
			ExpectedImpact: "+25% LTV",
			Description:    "High browser, low converter - offer incentive",
		})
	}
	return recs
}

// ProjectByAge extends a cohort's average value to 12 and 24 months,
// assuming growth slows with age.
func ProjectByAge(avgLTV float64, ageMonths int) (p12, p24 float64) {
	monthly := avgLTV
	if ageMonths > 0 {
		monthly = avgLTV / float64(ageMonths)
	}
	to12 := math.Max(0, float64(12-ageMonths))
	to24 := math.Max(0, float64(24-ageMonths))
	return avgLTV + monthly*to12*0.8, avgLTV + monthly*to24*0.6
}
