package churn

import (
	"fmt"
	"math"

	"customerIntel/domain"
)

const (
	weightRecency            = 0.25
	weightFrequencyDecay     = 0.20
	weightEngagementDecline  = 0.15
	weightSupportIssues      = 0.10
	weightEmailDisengagement = 0.10
	weightSessionDecline     = 0.10
	weightValueDecline       = 0.10

	logisticSteepness = 5.0
	logisticCenter    = 0.5
	// LTV at which the value multiplier reaches 1.0
	ltvScale = 1000.0
)

func weightedSum(f domain.ChurnFeatures) float64 {
	return f.Recency*weightRecency +
		f.FrequencyDecay*weightFrequencyDecay +
		f.EngagementDecline*weightEngagementDecline +
		f.SupportIssues*weightSupportIssues +
		f.EmailDisengagement*weightEmailDisengagement +
		f.SessionDecline*weightSessionDecline +
		f.ValueDecline*weightValueDecline
}

// Probability squashes the weighted features through a logistic curve and
// scales it by a value multiplier in [0.8, 1.0].
func Probability(f domain.ChurnFeatures) float64 {
	ws := weightedSum(f)
	p := 1 / (1 + math.Exp(-logisticSteepness*(ws-logisticCenter)))
	ltvFactor := math.Min(1, math.Max(0, f.LifetimeValue)/ltvScale)
	return clamp01(p * (0.8 + 0.2*ltvFactor))
}

func severity(v, high float64) domain.Priority {
	if v > high {
		return domain.PriorityHigh
	}
	return domain.PriorityMedium
}

func Factors(f domain.ChurnFeatures) []domain.ChurnFactor {
	factors := []domain.ChurnFactor{}
	if f.Recency > 0.6 {
		factors = append(factors, domain.ChurnFactor{
			Factor:      "Inactivity",
			Severity:    severity(f.Recency, 0.8),
			Description: fmt.Sprintf("No activity for %d days", f.DaysSinceLastSeen),
		})
	}
	if f.FrequencyDecay > 0.5 {
		factors = append(factors, domain.ChurnFactor{
			Factor:      "Declining Purchase Frequency",
			Severity:    severity(f.FrequencyDecay, 0.7),
			Description: "Time between purchases is increasing",
		})
	}
	if f.EngagementDecline > 0.5 {
		factors = append(factors, domain.ChurnFactor{
			Factor:      "Declining Engagement",
			Severity:    severity(f.EngagementDecline, 0.7),
			Description: "Fewer sessions and interactions",
		})
	}
	if f.EmailDisengagement > 0.6 {
		factors = append(factors, domain.ChurnFactor{
			Factor:      "Email Disengagement",
			Severity:    severity(f.EmailDisengagement, 0.8),
			Description: "Not engaging with email communications",
		})
	}
	if f.ValueDecline > 0.4 {
		factors = append(factors, domain.ChurnFactor{
			Factor:      "Declining Order Value",
			Severity:    domain.PriorityMedium,
			Description: "Recent orders are smaller than average",
		})
	}
	return factors
}

func Recommendations(f domain.ChurnFeatures, level domain.RiskLevel) []domain.Recommendation {
	recs := []domain.Recommendation{}
	if level == domain.RiskCritical || level == domain.RiskHigh {
		recs = append(recs, domain.Recommendation{
			Action:      "personal_outreach",
			Priority:    domain.PriorityHigh,
			Description: "Reach out with a personal message or call",
		})
	}
	if f.Recency > 0.5 {
		recs = append(recs, domain.Recommendation{
			Action:      "win_back_campaign",
			Priority:    domain.PriorityHigh,
			Description: "Send win-back email with special offer",
		})
	}
	if f.ValueDecline > 0.3 {
		recs = append(recs, domain.Recommendation{
			Action:      "loyalty_reward",
			Priority:    domain.PriorityMedium,
			Description: "Offer loyalty points or exclusive discount",
		})
	}
	if f.EmailDisengagement > 0.5 {
		recs = append(recs,
			domain.Recommendation{
				Action:      "preference_update",
				Priority:    domain.PriorityMedium,
				Description: "Request email preference update",
			},
			domain.Recommendation{
				Action:      "sms_outreach",
				Priority:    domain.PriorityMedium,
				Description: "Try alternative channel (SMS)",
			},
		)
	}
	if len(recs) == 0 {
		recs = append(recs, domain.Recommendation{
			Action:      "maintain_engagement",
			Priority:    domain.PriorityLow,
			Description: "Continue regular engagement",
		})
	}
	return recs
}
