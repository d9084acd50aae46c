package churn

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"customerIntel/domain"
	"customerIntel/pkg/logger"
	"customerIntel/pkg/metrics"
)

const (
	DefaultBatchSize = 500

	atRiskOversample  = 3
	segmentSampleSize = 100
	cohortSampleSize  = 50
	dashboardTopN     = 10
	dashboardPool     = 100
	// cohort revenue counts as at risk past this many days of silence
	revenueRiskDays = 30
)

var ErrNotFound = errors.New("customer not found")

// ---- Repository interfaces ----

type ChurnRepository interface {
	FindByID(ctx context.Context, id uint) (domain.CustomerProfile, bool, error)
	Activity(ctx context.Context, customerID uint, now time.Time) (Activity, error)
	// TopPurchasers returns analyzable purchasers ordered by total spent.
	TopPurchasers(ctx context.Context, tenantID *uint, limit int) ([]domain.CustomerProfile, error)
	CountPurchasers(ctx context.Context, tenantID *uint) (int64, error)
	Segments(ctx context.Context, tenantID *uint) ([]string, error)
	SegmentMembers(ctx context.Context, tenantID *uint, segment string, limit int) ([]domain.CustomerProfile, error)
	Cohorts(ctx context.Context, tenantID *uint, cohortType domain.CohortType, limit int) ([]string, error)
	CohortMembers(ctx context.Context, tenantID *uint, cohortType domain.CohortType, cohort string) ([]domain.CustomerProfile, error)
	FindInBatches(ctx context.Context, scope domain.ProfileScope, batchSize int, fn func(batch []domain.CustomerProfile) error) error
	SaveChurnScore(ctx context.Context, customerID uint, score float64) error
}

// ---- Service ----

type Config struct {
	ThresholdDays int
	BatchSize     int
}

type ChurnService struct {
	repo ChurnRepository
	cfg  Config
	now  func() time.Time
}

func NewChurnService(repo ChurnRepository, cfg Config) *ChurnService {
	if cfg.ThresholdDays <= 0 {
		cfg.ThresholdDays = DefaultThresholdDays
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &ChurnService{repo: repo, cfg: cfg, now: time.Now}
}

// PredictProfile scores an already loaded profile at now.
func (s *ChurnService) PredictProfile(ctx context.Context, p domain.CustomerProfile, now time.Time) (domain.ChurnPrediction, error) {
	activity, err := s.repo.Activity(ctx, p.ID, now)
	if err != nil {
		return domain.ChurnPrediction{}, err
	}

	features := ExtractFeatures(p, activity, now, s.cfg.ThresholdDays)
	probability := Probability(features)
	level := domain.RiskLevelFor(probability)

	return domain.ChurnPrediction{
		CustomerID:      p.ID,
		CustomerUUID:    p.UUID.String(),
		Probability:     round3(probability),
		RiskLevel:       level,
		RiskLabel:       level.Label(),
		Features:        features,
		Factors:         Factors(features),
		Recommendations: Recommendations(features, level),
		PredictedAt:     now,
	}, nil
}

func (s *ChurnService) Predict(ctx context.Context, customerID uint) (domain.ChurnPrediction, error) {
	p, ok, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		return domain.ChurnPrediction{}, err
	}
	if !ok {
		return domain.ChurnPrediction{}, ErrNotFound
	}
	return s.PredictProfile(ctx, p, s.now())
}

// predictAll scores a sample and skips the members that fail.
func (s *ChurnService) predictAll(ctx context.Context, profiles []domain.CustomerProfile, now time.Time) []domain.ChurnPrediction {
	out := make([]domain.ChurnPrediction, 0, len(profiles))
	for _, p := range profiles {
		pred, err := s.PredictProfile(ctx, p, now)
		if err != nil {
			logger.Warn("churn prediction failed", "customer_id", p.ID, "error", err)
			continue
		}
		out = append(out, pred)
	}
	return out
}

// AtRiskCustomers returns the highest-spending purchasers at or above minLevel,
// most likely to churn first.
func (s *ChurnService) AtRiskCustomers(ctx context.Context, minLevel domain.RiskLevel, limit int, tenantID *uint) ([]domain.ChurnPrediction, error) {
	if limit <= 0 {
		limit = 100
	}
	candidates, err := s.repo.TopPurchasers(ctx, tenantID, limit*atRiskOversample)
	if err != nil {
		return nil, err
	}

	floor := minLevel.Rank()
	var out []domain.ChurnPrediction
	for _, pred := range s.predictAll(ctx, candidates, s.now()) {
		if pred.RiskLevel.Rank() >= floor {
			out = append(out, pred)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []domain.ChurnPrediction{}
	}
	return out, nil
}

func emptyDistribution() map[domain.RiskLevel]int {
	dist := make(map[domain.RiskLevel]int, len(domain.RiskLevels))
	for _, l := range domain.RiskLevels {
		dist[l] = 0
	}
	return dist
}

func (s *ChurnService) StatsBySegment(ctx context.Context, tenantID *uint) ([]domain.ChurnSegmentStats, error) {
	segments, err := s.repo.Segments(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stats := make([]domain.ChurnSegmentStats, 0, len(segments))
	for _, segment := range segments {
		members, err := s.repo.SegmentMembers(ctx, tenantID, segment, segmentSampleSize)
		if err != nil {
			return nil, err
		}

		byID := make(map[uint]domain.CustomerProfile, len(members))
		for _, m := range members {
			byID[m.ID] = m
		}

		row := domain.ChurnSegmentStats{
			Segment:          segment,
			CustomerCount:    len(members),
			RiskDistribution: emptyDistribution(),
		}
		preds := s.predictAll(ctx, members, now)
		var sum float64
		for _, pred := range preds {
			sum += pred.Probability
			row.RiskDistribution[pred.RiskLevel]++
			if pred.RiskLevel != domain.RiskMinimal {
				row.ValueAtRisk += byID[pred.CustomerID].LifetimeValue
			}
		}
		if len(preds) > 0 {
			row.AvgProbability = round3(sum / float64(len(preds)))
		}
		row.ValueAtRisk = math.Round(row.ValueAtRisk*100) / 100
		stats = append(stats, row)
	}
	return stats, nil
}

// CohortAnalysis compares observed churn per cohort with the predicted probability.
func (s *ChurnService) CohortAnalysis(ctx context.Context, cohortType domain.CohortType, cohortsBack int, tenantID *uint) ([]domain.ChurnCohort, error) {
	if cohortsBack <= 0 {
		cohortsBack = 12
	}
	cohorts, err := s.repo.Cohorts(ctx, tenantID, cohortType, cohortsBack)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]domain.ChurnCohort, 0, len(cohorts))
	for _, cohort := range cohorts {
		members, err := s.repo.CohortMembers(ctx, tenantID, cohortType, cohort)
		if err != nil {
			return nil, err
		}

		row := domain.ChurnCohort{Cohort: cohort, TotalCustomers: int64(len(members))}
		for _, m := range members {
			if m.LastSeenAt == nil {
				continue
			}
			silent := wholeDays(now.Sub(*m.LastSeenAt))
			if silent < s.cfg.ThresholdDays {
				row.ActiveCustomers++
			}
			if silent > revenueRiskDays {
				row.RevenueAtRisk += m.LifetimeValue
			}
		}
		row.ChurnedCustomers = row.TotalCustomers - row.ActiveCustomers
		if row.TotalCustomers > 0 {
			row.ActualChurnRate = math.Round(float64(row.ChurnedCustomers)/float64(row.TotalCustomers)*1000) / 10
		}

		sample := members
		if len(sample) > cohortSampleSize {
			sample = sample[:cohortSampleSize]
		}
		if preds := s.predictAll(ctx, sample, now); len(preds) > 0 {
			var sum float64
			for _, pred := range preds {
				sum += pred.Probability
			}
			row.PredictedProbability = round3(sum / float64(len(preds)))
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *ChurnService) Dashboard(ctx context.Context, tenantID *uint) (domain.ChurnDashboard, error) {
	total, err := s.repo.CountPurchasers(ctx, tenantID)
	if err != nil {
		return domain.ChurnDashboard{}, err
	}

	atRisk, err := s.AtRiskCustomers(ctx, domain.RiskHigh, dashboardPool, tenantID)
	if err != nil {
		return domain.ChurnDashboard{}, err
	}

	segments, err := s.StatsBySegment(ctx, tenantID)
	if err != nil {
		return domain.ChurnDashboard{}, err
	}

	dash := domain.ChurnDashboard{
		Summary: domain.ChurnSummary{
			TotalCustomers:  total,
			AtRiskCustomers: len(atRisk),
		},
		RiskDistribution: map[domain.RiskLevel]int{domain.RiskCritical: 0, domain.RiskHigh: 0},
		Segments:         segments,
		GeneratedAt:      s.now(),
	}

	var sum float64
	for _, pred := range atRisk {
		dash.RiskDistribution[pred.RiskLevel]++
		dash.Summary.TotalValueAtRisk += pred.Features.LifetimeValue
		sum += pred.Probability
	}
	if len(atRisk) > 0 {
		dash.Summary.AvgProbability = round3(sum / float64(len(atRisk)))
	}
	if total > 0 {
		dash.Summary.AtRiskPercentage = math.Round(float64(len(atRisk))/float64(total)*1000) / 10
	}
	dash.Summary.TotalValueAtRisk = math.Round(dash.Summary.TotalValueAtRisk*100) / 100

	dash.TopAtRisk = atRisk
	if len(dash.TopAtRisk) > dashboardTopN {
		dash.TopAtRisk = dash.TopAtRisk[:dashboardTopN]
	}
	return dash, nil
}

// UpdateChurnScores writes churn_risk_score (percent, one decimal) for every
// analyzable purchaser. A failing record is counted and skipped.
func (s *ChurnService) UpdateChurnScores(ctx context.Context, tenantID *uint) (domain.BatchResult, error) {
	started := time.Now()
	now := s.now()
	var res domain.BatchResult

	scope := domain.ProfileScope{TenantID: tenantID, PurchasersOnly: true}
	err := s.repo.FindInBatches(ctx, scope, s.cfg.BatchSize, func(batch []domain.CustomerProfile) error {
		for _, p := range batch {
			pred, err := s.PredictProfile(ctx, p, now)
			if err == nil {
				err = s.repo.SaveChurnScore(ctx, p.ID, math.Round(pred.Probability*1000)/10)
			}
			if err != nil {
				logger.Warn("churn score update failed", "customer_id", p.ID, "error", err)
				res.Errors++
				continue
			}
			res.Updated++
		}
		return ctx.Err()
	})

	metrics.ObserveBatch("churn", res.Updated, res.Errors)
	metrics.BatchDuration.WithLabelValues("churn").Observe(time.Since(started).Seconds())
	logger.Info("churn pass finished", "updated", res.Updated, "errors", res.Errors)

	return res, err
}
