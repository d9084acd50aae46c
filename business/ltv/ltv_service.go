package ltv

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"customerIntel/domain"
	"customerIntel/pkg/logger"
	"customerIntel/pkg/metrics"
)

const (
	DefaultBatchSize = 500

	highPotentialGrowth     = 50.0
	highPotentialOversample = 2
	segmentSampleSize       = 20
)

var ErrNotFound = errors.New("customer not found")

// SegmentValue aggregates lifetime value over one customer segment.
type SegmentValue struct {
	Segment  string
	Count    int64
	AvgLTV   float64
	TotalLTV float64
	MinLTV   float64
	MaxLTV   float64
}

type CohortValue struct {
	Cohort    string
	Count     int64
	TotalLTV  float64
	AvgLTV    float64
	AvgOrders float64
}

// ---- Repository interfaces ----

type LtvRepository interface {
	FindByID(ctx context.Context, id uint) (domain.CustomerProfile, bool, error)
	Signals(ctx context.Context, p domain.CustomerProfile) (Signals, error)
	PurchaserStats(ctx context.Context, tenantID *uint) (PopulationStats, error)
	// EarlyBuyers returns customers with one to three orders, most engaged first.
	EarlyBuyers(ctx context.Context, tenantID *uint, limit int) ([]domain.CustomerProfile, error)
	SegmentValues(ctx context.Context, tenantID *uint) ([]SegmentValue, error)
	SegmentMembers(ctx context.Context, tenantID *uint, segment string, limit int) ([]domain.CustomerProfile, error)
	CohortValues(ctx context.Context, tenantID *uint, cohortType domain.CohortType, limit int) ([]CohortValue, error)
	// ValuePercentiles covers profiles with a positive lifetime value; ok is
	// false when there are none.
	ValuePercentiles(ctx context.Context, tenantID *uint) (domain.TierThresholds, bool, error)
	ValueStats(ctx context.Context, tenantID *uint, floor float64, ceiling *float64) (domain.ValueStats, error)
	FindInBatches(ctx context.Context, scope domain.ProfileScope, batchSize int, fn func(batch []domain.CustomerProfile) error) error
	SavePredictedLtv(ctx context.Context, customerID uint, predicted float64, tier domain.Tier) error
}

// ---- Service ----

type Config struct {
	BatchSize    int
	BenchmarkTTL time.Duration
}

type LtvService struct {
	repo  LtvRepository
	cache BenchmarkCache
	cfg   Config
	now   func() time.Time
}

// NewLtvService uses an in-process cache when cache is nil.
func NewLtvService(repo LtvRepository, cache BenchmarkCache, cfg Config) *LtvService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BenchmarkTTL <= 0 {
		cfg.BenchmarkTTL = DefaultBenchmarkTTL
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &LtvService{repo: repo, cache: cache, cfg: cfg, now: time.Now}
}

func benchmarkTenant(p domain.CustomerProfile) *uint {
	if len(p.TenantIDs) == 0 {
		return nil
	}
	id := p.TenantIDs[0]
	return &id
}

func (s *LtvService) PredictProfile(ctx context.Context, p domain.CustomerProfile, now time.Time) (domain.LtvPrediction, error) {
	b, err := s.benchmarks(ctx, benchmarkTenant(p))
	if err != nil {
		return domain.LtvPrediction{}, err
	}
	sig, err := s.repo.Signals(ctx, p)
	if err != nil {
		return domain.LtvPrediction{}, fmt.Errorf("load ltv signals: %w", err)
	}

	features := ExtractFeatures(p, sig, b, now)
	proj := Project(features, b)
	tier := b.Tiers.TierFor(proj.Predicted12m)

	return domain.LtvPrediction{
		CustomerID:       p.ID,
		CustomerUUID:     p.UUID.String(),
		CurrentLTV:       round2(features.CurrentLTV),
		Predicted12mLTV:  round2(proj.Predicted12m),
		Predicted24mLTV:  round2(proj.Predicted24m),
		GrowthPotential:  round2(proj.GrowthPotential),
		WeightedScore:    round3(proj.WeightedScore),
		Tier:             tier,
		TierLabel:        tier.Label(),
		Confidence:       ConfidenceFor(features, p),
		DataQualityScore: DataQualityScore(features, p),
		Features:         features,
		Factors:          Factors(features),
		Recommendations:  Recommendations(features, tier),
		PredictedAt:      now,
	}, nil
}

func (s *LtvService) Predict(ctx context.Context, customerID uint) (domain.LtvPrediction, error) {
	p, ok, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return domain.LtvPrediction{}, err
	}
	if !ok {
		return domain.LtvPrediction{}, ErrNotFound
	}
	return s.PredictProfile(ctx, p, s.now())
}

func (s *LtvService) predictAll(ctx context.Context, profiles []domain.CustomerProfile, now time.Time) []domain.LtvPrediction {
	out := make([]domain.LtvPrediction, 0, len(profiles))
	for _, p := range profiles {
		pred, err := s.PredictProfile(ctx, p, now)
		if err != nil {
			logger.Warn("ltv prediction failed", "customer_id", p.ID, "error", err)
			continue
		}
		out = append(out, pred)
	}
	return out
}

// HighPotentialCustomers returns early buyers whose 12-month value is
// projected to grow by more than half.
func (s *LtvService) HighPotentialCustomers(ctx context.Context, limit int, tenantID *uint) ([]domain.LtvPrediction, error) {
	if limit <= 0 {
		limit = 50
	}
	candidates, err := s.repo.EarlyBuyers(ctx, tenantID, limit*highPotentialOversample)
	if err != nil {
		return nil, err
	}

	out := []domain.LtvPrediction{}
	for _, pred := range s.predictAll(ctx, candidates, s.now()) {
		if pred.GrowthPotential > highPotentialGrowth {
			out = append(out, pred)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].GrowthPotential > out[j].GrowthPotential })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *LtvService) BySegment(ctx context.Context, tenantID *uint) ([]domain.LtvSegment, error) {
	segments, err := s.repo.SegmentValues(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]domain.LtvSegment, 0, len(segments))
	for _, seg := range segments {
		sample, err := s.repo.SegmentMembers(ctx, tenantID, seg.Segment, segmentSampleSize)
		if err != nil {
			return nil, err
		}

		var predicted float64
		if preds := s.predictAll(ctx, sample, now); len(preds) > 0 {
			for _, pred := range preds {
				predicted += pred.Predicted12mLTV
			}
			predicted /= float64(len(preds))
		}

		row := domain.LtvSegment{
			Segment:         seg.Segment,
			CustomerCount:   seg.Count,
			CurrentAvgLTV:   round2(seg.AvgLTV),
			PredictedAvgLTV: round2(predicted),
			TotalLTV:        round2(seg.TotalLTV),
			MinLTV:          round2(seg.MinLTV),
			MaxLTV:          round2(seg.MaxLTV),
		}
		if seg.AvgLTV > 0 {
			row.GrowthPotential = roundTo1((predicted - seg.AvgLTV) / seg.AvgLTV * 100)
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *LtvService) ByCohort(ctx context.Context, cohortType domain.CohortType, cohortsBack int, tenantID *uint) ([]domain.LtvCohort, error) {
	if cohortsBack <= 0 {
		cohortsBack = 12
	}
	cohorts, err := s.repo.CohortValues(ctx, tenantID, cohortType, cohortsBack)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]domain.LtvCohort, 0, len(cohorts))
	for _, c := range cohorts {
		age := CohortAgeMonths(c.Cohort, cohortType, now)
		p12, p24 := ProjectByAge(c.AvgLTV, age)

		row := domain.LtvCohort{
			Cohort:        c.Cohort,
			AgeMonths:     age,
			CustomerCount: c.Count,
			TotalLTV:      round2(c.TotalLTV),
			AvgLTV:        round2(c.AvgLTV),
			AvgOrders:     roundTo1(c.AvgOrders),
			Projected12m:  round2(p12),
			Projected24m:  round2(p24),
		}
		if age > 0 {
			row.LtvPerMonth = round2(c.AvgLTV / float64(age))
		}
		out = append(out, row)
	}
	return out, nil
}

// TierDistribution buckets the population by lifetime value percentiles,
// highest tier first.
func (s *LtvService) TierDistribution(ctx context.Context, tenantID *uint) ([]domain.TierBucket, error) {
	thresholds, ok, err := s.repo.ValuePercentiles(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []domain.TierBucket{}, nil
	}

	type bounds struct {
		tier    domain.Tier
		label   string
		floor   float64
		ceiling *float64
	}
	plat, gold, silver := thresholds.Platinum, thresholds.Gold, thresholds.Silver
	tiers := []bounds{
		{domain.TierPlatinum, "Platinum (Top 5%)", plat, nil},
		{domain.TierGold, "Gold (Top 20%)", gold, &plat},
		{domain.TierSilver, "Silver (Top 50%)", silver, &gold},
		{domain.TierBronze, "Bronze (Bottom 50%)", 0, &silver},
	}

	out := make([]domain.TierBucket, 0, len(tiers))
	for _, t := range tiers {
		stats, err := s.repo.ValueStats(ctx, tenantID, t.floor, t.ceiling)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.TierBucket{
			Tier:          t.tier,
			Label:         t.label,
			Threshold:     round2(t.floor),
			CustomerCount: stats.Count,
			TotalLTV:      round2(stats.TotalLTV),
			AvgLTV:        round2(stats.AvgLTV),
		})
	}
	return out, nil
}

// UpdatePredictedLtv writes the 12-month prediction and tier of every
// analyzable profile. A failing record is counted and skipped.
func (s *LtvService) UpdatePredictedLtv(ctx context.Context, tenantID *uint) (domain.BatchResult, error) {
	started := time.Now()
	now := s.now()
	var res domain.BatchResult

	scope := domain.ProfileScope{TenantID: tenantID}
	err := s.repo.FindInBatches(ctx, scope, s.cfg.BatchSize, func(batch []domain.CustomerProfile) error {
		for _, p := range batch {
			pred, err := s.PredictProfile(ctx, p, now)
			if err == nil {
				err = s.repo.SavePredictedLtv(ctx, p.ID, pred.Predicted12mLTV, pred.Tier)
			}
			if err != nil {
				logger.Warn("ltv update failed", "customer_id", p.ID, "error", err)
				res.Errors++
				continue
			}
			res.Updated++
		}
		return ctx.Err()
	})

	metrics.ObserveBatch("ltv", res.Updated, res.Errors)
	metrics.BatchDuration.WithLabelValues("ltv").Observe(time.Since(started).Seconds())
	logger.Info("ltv pass finished", "updated", res.Updated, "errors", res.Errors)

	return res, err
}

func roundTo1(v float64) float64 {
	return math.Round(v*10) / 10
}

// CohortAgeMonths counts whole months from the cohort start to now. Keys
// that do not parse are age 0.
func CohortAgeMonths(cohort string, cohortType domain.CohortType, now time.Time) int {
	start, err := cohortStart(cohort, cohortType)
	if err != nil {
		return 0
	}
	return monthsBetween(start, now)
}

func cohortStart(cohort string, cohortType domain.CohortType) (time.Time, error) {
	if cohortType != domain.CohortWeekly {
		return time.Parse("2006-01", cohort)
	}
	var year, week int
	if _, err := fmt.Sscanf(cohort, "%d-W%d", &year, &week); err != nil {
		return time.Time{}, err
	}
	// ISO week 1 holds January 4th
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, -((int(jan4.Weekday()) + 6) % 7))
	return monday.AddDate(0, 0, (week-1)*7), nil
}

func monthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}
