package ltv

import (
	"math"
	"strings"
	"time"

	"customerIntel/domain"
)

// EarlyWindowDays is the span after first seen that counts as early buying.
const EarlyWindowDays = 30

const (
	earlyOrdersCap       = 3.0
	sessionDepthCap      = 10.0
	categoryCap          = 5.0
	neutralChannel       = 0.5
	neutralFirstPurchase = 0.5
)

// Signals is the event and session history the features read.
type Signals struct {
	FirstPurchaseValue float64
	// EarlyPurchases counts purchases within 30 days of first seen.
	EarlyPurchases     int
	AvgPagesPerSession float64
	Categories         int
	HasSession         bool
	// FirstSource is the utm source of the earliest session.
	FirstSource string
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func wholeDays(d time.Duration) int {
	return int(d.Hours() / 24)
}

func ExtractFeatures(p domain.CustomerProfile, sig Signals, b domain.LtvBenchmarks, now time.Time) domain.LtvFeatures {
	age := 0
	if p.FirstSeenAt != nil {
		age = wholeDays(now.Sub(*p.FirstSeenAt))
	}
	referral := 0.0
	if p.ReferredBy != nil {
		referral = 1
	}

	return domain.LtvFeatures{
		FirstPurchaseValue: round3(normalize(sig.FirstPurchaseValue, b.AvgFirstPurchase)),
		EarlyFrequency:     round3(math.Min(1, float64(sig.EarlyPurchases)/earlyOrdersCap)),
		EngagementScore:    round3(clamp01(p.EngagementScore / 100)),
		SessionDepth:       round3(math.Min(1, sig.AvgPagesPerSession/sessionDepthCap)),
		CategoryDiversity:  round3(math.Min(1, float64(sig.Categories)/categoryCap)),
		ChannelQuality:     round3(channelQuality(sig)),
		EmailEngagement:    round3(emailEngagement(p)),
		ReferralSource:     referral,

		FirstPurchaseAmount: round2(sig.FirstPurchaseValue),
		EarlyOrders:         sig.EarlyPurchases,
		AvgPagesPerSession:  math.Round(sig.AvgPagesPerSession*10) / 10,
		CategoriesPurchased: sig.Categories,
		CurrentLTV:          math.Max(0, p.LifetimeValue),
		TotalOrders:         p.TotalOrders,
		CustomerAgeDays:     age,
	}
}

// normalize maps value onto [0,1], twice the benchmark being the top.
func normalize(value, benchmark float64) float64 {
	if benchmark <= 0 {
		return neutralFirstPurchase
	}
	return clamp01(value / (benchmark * 2))
}

// channelQuality scores the acquisition source of the first session;
// direct and organic traffic retain better than paid social.
func channelQuality(sig Signals) float64 {
	if !sig.HasSession {
		return neutralChannel
	}
	source := strings.ToLower(strings.TrimSpace(sig.FirstSource))
	switch {
	case source == "" || source == "direct":
		return 1.0
	case source == "google" || source == "organic":
		return 0.9
	case source == "email" || source == "newsletter":
		return 0.8
	case strings.Contains(source, "referral"):
		return 0.85
	case source == "facebook" || source == "instagram" || source == "tiktok":
		return 0.6
	default:
		return neutralChannel
	}
}

func emailEngagement(p domain.CustomerProfile) float64 {
	if p.EmailUnsubscribedAt != nil {
		return 0
	}
	return clamp01((p.EmailOpenRate*0.6 + p.EmailClickRate*0.4) / 100)
}
