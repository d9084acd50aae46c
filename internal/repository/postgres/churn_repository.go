package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"customerIntel/business/churn"
	"customerIntel/domain"
)

const (
	activityWindowDays = 180
	recentPurchaseCap  = 5
	recentValueCap     = 3
)

// ChurnRepository shares profile lookups and batching with CustomerRepository.
type ChurnRepository struct {
	*CustomerRepository
}

func NewChurnRepository(db *gorm.DB) *ChurnRepository {
	return &ChurnRepository{
		CustomerRepository: NewCustomerRepository(db),
	}
}

type purchaseRow struct {
	OccurredAt      time.Time `gorm:"column:occurred_at"`
	ConversionValue float64   `gorm:"column:conversion_value"`
}

type sessionWindows struct {
	Last30  int `gorm:"column:last30"`
	Prior30 int `gorm:"column:prior30"`
	Last90  int `gorm:"column:last90"`
	Prior90 int `gorm:"column:prior90"`
}

func (r *ChurnRepository) Activity(ctx context.Context, customerID uint, now time.Time) (churn.Activity, error) {
	if err := ctxErr(ctx); err != nil {
		return churn.Activity{}, err
	}

	var rows []purchaseRow
	err := r.DB.WithContext(ctx).Model(&domain.Event{}).
		Select("occurred_at, conversion_value").
		Where("customer_id = ? AND event_type = ? AND occurred_at >= ?",
			customerID, domain.EventPurchase, now.AddDate(0, 0, -activityWindowDays)).
		Order("occurred_at DESC").
		Limit(recentPurchaseCap).
		Scan(&rows).Error
	if err != nil {
		return churn.Activity{}, fmt.Errorf("failed to load recent purchases: %w", err)
	}

	var a churn.Activity
	for i, row := range rows {
		a.RecentPurchases = append(a.RecentPurchases, row.OccurredAt)
		if i < recentValueCap {
			a.RecentOrderValues = append(a.RecentOrderValues, row.ConversionValue)
		}
	}

	var w sessionWindows
	err = r.DB.WithContext(ctx).Model(&domain.Session{}).
		Select(`COUNT(*) FILTER (WHERE started_at >= @d30) AS last30,
			COUNT(*) FILTER (WHERE started_at >= @d60 AND started_at < @d30) AS prior30,
			COUNT(*) FILTER (WHERE started_at >= @d90) AS last90,
			COUNT(*) FILTER (WHERE started_at >= @d180 AND started_at < @d90) AS prior90`,
			map[string]any{
				"d30":  now.AddDate(0, 0, -30),
				"d60":  now.AddDate(0, 0, -60),
				"d90":  now.AddDate(0, 0, -90),
				"d180": now.AddDate(0, 0, -180),
			}).
		Where("customer_id = ?", customerID).
		Scan(&w).Error
	if err != nil {
		return churn.Activity{}, fmt.Errorf("failed to count sessions: %w", err)
	}

	a.SessionsLast30 = w.Last30
	a.SessionsPrior30 = w.Prior30
	a.SessionsLast90 = w.Last90
	a.SessionsPrior90 = w.Prior90
	return a, nil
}

func (r *ChurnRepository) purchasers(ctx context.Context, tenantID *uint) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).
		Scopes(analyzable, purchasers, profileTenant(tenantID))
}

func (r *ChurnRepository) TopPurchasers(ctx context.Context, tenantID *uint, limit int) ([]domain.CustomerProfile, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var profiles []domain.CustomerProfile
	if err := r.purchasers(ctx, tenantID).Order("total_spent DESC").Limit(limit).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to find purchasers: %w", err)
	}

	return profiles, nil
}

func (r *ChurnRepository) CountPurchasers(ctx context.Context, tenantID *uint) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}

	var count int64
	if err := r.purchasers(ctx, tenantID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count purchasers: %w", err)
	}

	return count, nil
}

func (r *ChurnRepository) Segments(ctx context.Context, tenantID *uint) ([]string, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var segments []string
	err := r.purchasers(ctx, tenantID).
		Where("customer_segment <> ''").
		Distinct().
		Order("customer_segment").
		Pluck("customer_segment", &segments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	return segments, nil
}

func (r *ChurnRepository) SegmentMembers(ctx context.Context, tenantID *uint, segment string, limit int) ([]domain.CustomerProfile, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var profiles []domain.CustomerProfile
	err := r.purchasers(ctx, tenantID).
		Where("customer_segment = ?", segment).
		Order("id").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find segment members: %w", err)
	}

	return profiles, nil
}

// Cohorts returns the newest cohort keys first.
func (r *ChurnRepository) Cohorts(ctx context.Context, tenantID *uint, cohortType domain.CohortType, limit int) ([]string, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	col := cohortType.Column()
	var cohorts []string
	err := r.purchasers(ctx, tenantID).
		Where(col+" <> ''").
		Distinct().
		Order(col+" DESC").
		Limit(limit).
		Pluck(col, &cohorts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list cohorts: %w", err)
	}

	return cohorts, nil
}

func (r *ChurnRepository) CohortMembers(ctx context.Context, tenantID *uint, cohortType domain.CohortType, cohort string) ([]domain.CustomerProfile, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var profiles []domain.CustomerProfile
	err := r.purchasers(ctx, tenantID).
		Where(cohortType.Column()+" = ?", cohort).
		Order("id").
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find cohort members: %w", err)
	}

	return profiles, nil
}

func (r *ChurnRepository) SaveChurnScore(ctx context.Context, customerID uint, score float64) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	err := r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).
		Where("id = ?", customerID).
		Update("churn_risk_score", score).Error
	if err != nil {
		return fmt.Errorf("failed to save churn score: %w", err)
	}

	return nil
}
