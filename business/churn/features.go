package churn

import (
	"math"
	"time"

	"customerIntel/domain"
)

const (
	DefaultThresholdDays = 90

	// engagement compares [0,90) against [90,180) days back,
	// sessions compare [0,30) against [30,60).
	EngagementWindowDays = 90
	SessionWindowDays    = 30
	PurchaseLookbackDays = 180
	defaultIntervalDays  = 90
	neverSeenDays        = 365
	minEmailsForRates    = 10

	neutralFrequencyDecay    = 0.5
	sparseFrequencyDecay     = 0.7
	neutralEngagementDecline = 0.5
	neutralSessionDecline    = 0.7
	neutralValueDecline      = 0.5
	neutralEmail             = 0.3
)

// Activity is the per-customer history the features read, counted back
// from the reference time.
type Activity struct {
	// RecentPurchases are purchase times of the last 180 days, newest first, at most 5.
	RecentPurchases []time.Time
	// RecentOrderValues are the values of the last 3 purchases of the last 180 days.
	RecentOrderValues []float64

	SessionsLast30  int
	SessionsPrior30 int
	SessionsLast90  int
	SessionsPrior90 int
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func wholeDays(d time.Duration) int {
	return int(d.Hours() / 24)
}

// ExtractFeatures never fails on thin history; missing data maps to the
// neutral value of each feature.
func ExtractFeatures(p domain.CustomerProfile, a Activity, now time.Time, thresholdDays int) domain.ChurnFeatures {
	if thresholdDays <= 0 {
		thresholdDays = DefaultThresholdDays
	}

	daysSeen := neverSeenDays
	if p.LastSeenAt != nil {
		daysSeen = wholeDays(now.Sub(*p.LastSeenAt))
	}

	f := domain.ChurnFeatures{
		Recency:            round3(math.Min(1, float64(daysSeen)/float64(thresholdDays))),
		FrequencyDecay:     round3(frequencyDecay(p, a, now)),
		EngagementDecline:  round3(decline(a.SessionsLast90, a.SessionsPrior90, daysSeen, EngagementWindowDays, neutralEngagementDecline)),
		SessionDecline:     round3(decline(a.SessionsLast30, a.SessionsPrior30, daysSeen, SessionWindowDays, neutralSessionDecline)),
		ValueDecline:       round3(valueDecline(p, a)),
		EmailDisengagement: round3(emailDisengagement(p)),
		DaysSinceLastSeen:  daysSeen,
		TotalOrders:        p.TotalOrders,
		LifetimeValue:      p.LifetimeValue,
	}
	if p.LastPurchaseAt != nil {
		d := wholeDays(now.Sub(*p.LastPurchaseAt))
		f.DaysSinceLastPurchase = &d
	}
	return f
}

// frequencyDecay measures how far the recent purchase interval has
// stretched past the customer's usual one.
func frequencyDecay(p domain.CustomerProfile, a Activity, now time.Time) float64 {
	if p.TotalOrders < 2 {
		return neutralFrequencyDecay
	}

	expected := float64(defaultIntervalDays)
	if p.PurchaseFrequencyDays != nil {
		expected = float64(*p.PurchaseFrequencyDays)
	}
	if expected <= 0 {
		return neutralFrequencyDecay
	}

	if len(a.RecentPurchases) < 2 {
		// the open interval since the last purchase is a lower bound
		open := 0.0
		if p.LastPurchaseAt != nil {
			open = clamp01((float64(wholeDays(now.Sub(*p.LastPurchaseAt))) - expected) / expected)
		}
		return math.Max(sparseFrequencyDecay, open)
	}

	var total float64
	for i := 0; i < len(a.RecentPurchases)-1; i++ {
		total += float64(wholeDays(a.RecentPurchases[i].Sub(a.RecentPurchases[i+1])))
	}
	recent := total / float64(len(a.RecentPurchases)-1)
	return clamp01((recent - expected) / expected)
}

// decline compares a recent window count against the window before it.
// With both windows empty a customer silent for longer than both windows
// has fully declined; anyone else gets the neutral value.
func decline(recent, prior, daysSeen, windowDays int, neutral float64) float64 {
	if prior == 0 {
		if recent > 0 {
			return 0
		}
		if daysSeen >= 2*windowDays {
			return 1
		}
		return neutral
	}
	return clamp01(1 - float64(recent)/float64(prior))
}

func valueDecline(p domain.CustomerProfile, a Activity) float64 {
	if p.AverageOrderValue <= 0 {
		return neutralValueDecline
	}
	var recent float64
	if n := len(a.RecentOrderValues); n > 0 {
		for _, v := range a.RecentOrderValues {
			recent += v
		}
		recent /= float64(n)
	}
	return clamp01((p.AverageOrderValue - recent) / p.AverageOrderValue)
}

func emailDisengagement(p domain.CustomerProfile) float64 {
	if p.EmailUnsubscribedAt != nil {
		return 1
	}
	if p.EmailsSent > minEmailsForRates {
		engagement := p.EmailOpenRate*0.6 + p.EmailClickRate*0.4
		return clamp01(1 - engagement/100)
	}
	return neutralEmail
}
