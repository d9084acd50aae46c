package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"customerIntel/business/ltv"
	"customerIntel/domain"
)

type LtvRepository struct {
	*CustomerRepository
}

func NewLtvRepository(db *gorm.DB) *LtvRepository {
	return &LtvRepository{
		CustomerRepository: NewCustomerRepository(db),
	}
}

type sessionSignals struct {
	Sessions     int64   `gorm:"column:sessions"`
	AvgPageviews float64 `gorm:"column:avg_pageviews"`
}

// Signals reads the purchase and session history feeding value features.
func (r *LtvRepository) Signals(ctx context.Context, p domain.CustomerProfile) (ltv.Signals, error) {
	if err := ctxErr(ctx); err != nil {
		return ltv.Signals{}, err
	}
	db := r.DB.WithContext(ctx)
	var sig ltv.Signals

	var first []float64
	err := db.Model(&domain.Event{}).
		Where("customer_id = ? AND event_type = ?", p.ID, domain.EventPurchase).
		Order("occurred_at").
		Limit(1).
		Pluck("conversion_value", &first).Error
	if err != nil {
		return ltv.Signals{}, fmt.Errorf("failed to load first purchase: %w", err)
	}
	if len(first) > 0 {
		sig.FirstPurchaseValue = first[0]
	}

	if p.FirstSeenAt != nil {
		var early int64
		err = db.Model(&domain.Event{}).
			Where("customer_id = ? AND event_type = ? AND occurred_at <= ?",
				p.ID, domain.EventPurchase, p.FirstSeenAt.AddDate(0, 0, ltv.EarlyWindowDays)).
			Count(&early).Error
		if err != nil {
			return ltv.Signals{}, fmt.Errorf("failed to count early purchases: %w", err)
		}
		sig.EarlyPurchases = int(early)
	}

	var categories int64
	err = db.Model(&domain.Event{}).
		Where("customer_id = ? AND event_type = ? AND product_category <> ''", p.ID, domain.EventPurchase).
		Distinct("product_category").
		Count(&categories).Error
	if err != nil {
		return ltv.Signals{}, fmt.Errorf("failed to count categories: %w", err)
	}
	sig.Categories = int(categories)

	var ss sessionSignals
	err = db.Model(&domain.Session{}).
		Select("COUNT(*) AS sessions, COALESCE(AVG(pageviews), 0) AS avg_pageviews").
		Where("customer_id = ?", p.ID).
		Scan(&ss).Error
	if err != nil {
		return ltv.Signals{}, fmt.Errorf("failed to summarize sessions: %w", err)
	}
	sig.HasSession = ss.Sessions > 0
	sig.AvgPagesPerSession = ss.AvgPageviews

	if sig.HasSession {
		var sources []string
		err = db.Model(&domain.Session{}).
			Where("customer_id = ?", p.ID).
			Order("started_at").
			Limit(1).
			Pluck("utm_source", &sources).Error
		if err != nil {
			return ltv.Signals{}, fmt.Errorf("failed to load first source: %w", err)
		}
		if len(sources) > 0 {
			sig.FirstSource = sources[0]
		}
	}

	return sig, nil
}

func (r *LtvRepository) valued(ctx context.Context, tenantID *uint) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).
		Scopes(analyzable, profileTenant(tenantID)).
		Where("lifetime_value > 0")
}

type populationRow struct {
	Count         int64   `gorm:"column:count"`
	AvgLTV        float64 `gorm:"column:avg_ltv"`
	AvgOrderValue float64 `gorm:"column:avg_order_value"`
	P95LTV        float64 `gorm:"column:p95_ltv"`
	P80LTV        float64 `gorm:"column:p80_ltv"`
	P50LTV        float64 `gorm:"column:p50_ltv"`
}

func (r *LtvRepository) PurchaserStats(ctx context.Context, tenantID *uint) (ltv.PopulationStats, error) {
	if err := ctxErr(ctx); err != nil {
		return ltv.PopulationStats{}, err
	}

	var row populationRow
	err := r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).
		Scopes(analyzable, purchasers, profileTenant(tenantID)).
		Select(`COUNT(*) AS count,
			COALESCE(AVG(lifetime_value), 0) AS avg_ltv,
			COALESCE(AVG(average_order_value), 0) AS avg_order_value,
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY lifetime_value), 0) AS p95_ltv,
			COALESCE(PERCENTILE_CONT(0.80) WITHIN GROUP (ORDER BY lifetime_value), 0) AS p80_ltv,
			COALESCE(PERCENTILE_CONT(0.50) WITHIN GROUP (ORDER BY lifetime_value), 0) AS p50_ltv`).
		Scan(&row).Error
	if err != nil {
		return ltv.PopulationStats{}, fmt.Errorf("failed to compute purchaser stats: %w", err)
	}

	return ltv.PopulationStats(row), nil
}

func (r *LtvRepository) EarlyBuyers(ctx context.Context, tenantID *uint, limit int) ([]domain.CustomerProfile, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var profiles []domain.CustomerProfile
	err := r.DB.WithContext(ctx).
		Scopes(analyzable, profileTenant(tenantID)).
		Where("total_orders BETWEEN 1 AND 3").
		Order("engagement_score DESC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find early buyers: %w", err)
	}

	return profiles, nil
}

type segmentRow struct {
	Segment  string  `gorm:"column:segment"`
	Count    int64   `gorm:"column:count"`
	AvgLTV   float64 `gorm:"column:avg_ltv"`
	TotalLTV float64 `gorm:"column:total_ltv"`
	MinLTV   float64 `gorm:"column:min_ltv"`
	MaxLTV   float64 `gorm:"column:max_ltv"`
}

func (r *LtvRepository) SegmentValues(ctx context.Context, tenantID *uint) ([]ltv.SegmentValue, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var rows []segmentRow
	err := r.valued(ctx, tenantID).
		Select(`customer_segment AS segment,
			COUNT(*) AS count,
			AVG(lifetime_value) AS avg_ltv,
			SUM(lifetime_value) AS total_ltv,
			MIN(lifetime_value) AS min_ltv,
			MAX(lifetime_value) AS max_ltv`).
		Where("customer_segment <> ''").
		Group("customer_segment").
		Order("total_ltv DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate segments: %w", err)
	}

	out := make([]ltv.SegmentValue, 0, len(rows))
	for _, row := range rows {
		out = append(out, ltv.SegmentValue(row))
	}
	return out, nil
}

func (r *LtvRepository) SegmentMembers(ctx context.Context, tenantID *uint, segment string, limit int) ([]domain.CustomerProfile, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var profiles []domain.CustomerProfile
	err := r.valued(ctx, tenantID).
		Where("customer_segment = ?", segment).
		Order("lifetime_value DESC").
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find segment members: %w", err)
	}

	return profiles, nil
}

type cohortRow struct {
	Cohort    string  `gorm:"column:cohort"`
	Count     int64   `gorm:"column:count"`
	TotalLTV  float64 `gorm:"column:total_ltv"`
	AvgLTV    float64 `gorm:"column:avg_ltv"`
	AvgOrders float64 `gorm:"column:avg_orders"`
}

// CohortValues aggregates the newest cohorts first.
func (r *LtvRepository) CohortValues(ctx context.Context, tenantID *uint, cohortType domain.CohortType, limit int) ([]ltv.CohortValue, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	col := cohortType.Column()
	var rows []cohortRow
	err := r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).
		Scopes(analyzable, purchasers, profileTenant(tenantID)).
		Select(col + ` AS cohort,
			COUNT(*) AS count,
			SUM(lifetime_value) AS total_ltv,
			AVG(lifetime_value) AS avg_ltv,
			AVG(total_orders) AS avg_orders`).
		Where(col + " <> ''").
		Group(col).
		Order(col + " DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate cohorts: %w", err)
	}

	out := make([]ltv.CohortValue, 0, len(rows))
	for _, row := range rows {
		out = append(out, ltv.CohortValue(row))
	}
	return out, nil
}

type percentileRow struct {
	Count    int64   `gorm:"column:count"`
	Platinum float64 `gorm:"column:platinum"`
	Gold     float64 `gorm:"column:gold"`
	Silver   float64 `gorm:"column:silver"`
}

func (r *LtvRepository) ValuePercentiles(ctx context.Context, tenantID *uint) (domain.TierThresholds, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.TierThresholds{}, false, err
	}

	var row percentileRow
	err := r.valued(ctx, tenantID).
		Select(`COUNT(*) AS count,
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY lifetime_value), 0) AS platinum,
			COALESCE(PERCENTILE_CONT(0.80) WITHIN GROUP (ORDER BY lifetime_value), 0) AS gold,
			COALESCE(PERCENTILE_CONT(0.50) WITHIN GROUP (ORDER BY lifetime_value), 0) AS silver`).
		Scan(&row).Error
	if err != nil {
		return domain.TierThresholds{}, false, fmt.Errorf("failed to compute value percentiles: %w", err)
	}
	if row.Count == 0 {
		return domain.TierThresholds{}, false, nil
	}

	return domain.TierThresholds{Platinum: row.Platinum, Gold: row.Gold, Silver: row.Silver}, true, nil
}

type valueRow struct {
	Count    int64   `gorm:"column:count"`
	TotalLTV float64 `gorm:"column:total_ltv"`
	AvgLTV   float64 `gorm:"column:avg_ltv"`
}

// ValueStats covers floor <= lifetime_value < ceiling; a nil ceiling is open.
func (r *LtvRepository) ValueStats(ctx context.Context, tenantID *uint, floor float64, ceiling *float64) (domain.ValueStats, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.ValueStats{}, err
	}

	q := r.valued(ctx, tenantID).Where("lifetime_value >= ?", floor)
	if ceiling != nil {
		q = q.Where("lifetime_value < ?", *ceiling)
	}

	var row valueRow
	err := q.Select(`COUNT(*) AS count,
			COALESCE(SUM(lifetime_value), 0) AS total_ltv,
			COALESCE(AVG(lifetime_value), 0) AS avg_ltv`).
		Scan(&row).Error
	if err != nil {
		return domain.ValueStats{}, fmt.Errorf("failed to compute value stats: %w", err)
	}

	return domain.ValueStats(row), nil
}

func (r *LtvRepository) SavePredictedLtv(ctx context.Context, customerID uint, predicted float64, tier domain.Tier) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	err := r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).
		Where("id = ?", customerID).
		Updates(map[string]any{"predicted_ltv": predicted, "ltv_tier": string(tier)}).Error
	if err != nil {
		return fmt.Errorf("failed to save predicted ltv: %w", err)
	}

	return nil
}
