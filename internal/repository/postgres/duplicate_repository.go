package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"customerIntel/business/duplicate"
	"customerIntel/domain"
)

type DuplicateRepository struct {
	DB        *gorm.DB
	customers *CustomerRepository
}

func NewDuplicateRepository(db *gorm.DB) *DuplicateRepository {
	return &DuplicateRepository{
		DB:        db,
		customers: NewCustomerRepository(db),
	}
}

func (r *DuplicateRepository) FindByID(ctx context.Context, id uint) (domain.CustomerProfile, bool, error) {
	return r.customers.FindByID(ctx, id)
}

func (r *DuplicateRepository) profiles(ctx context.Context, limit int, query string, args ...any) ([]domain.CustomerProfile, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	q := r.DB.WithContext(ctx).Scopes(analyzable).Where(query, args...).Order("total_orders DESC, id")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var out []domain.CustomerProfile
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to find candidate customers: %w", err)
	}

	return out, nil
}

func (r *DuplicateRepository) FindByEmailHash(ctx context.Context, hash string) ([]domain.CustomerProfile, error) {
	return r.profiles(ctx, 0, "email_hash = ?", hash)
}

func (r *DuplicateRepository) FindByPhoneHash(ctx context.Context, hash string) ([]domain.CustomerProfile, error) {
	return r.profiles(ctx, 0, "phone_hash = ?", hash)
}

func (r *DuplicateRepository) FindByDevice(ctx context.Context, deviceID string) ([]domain.CustomerProfile, error) {
	return r.profiles(ctx, 0, "primary_device_id = ? OR linked_device_ids @> ?::jsonb", deviceID, fmt.Sprintf("[%q]", deviceID))
}

// FindInLocation matches on country and, when set, city; a zero limit is unbounded.
func (r *DuplicateRepository) FindInLocation(ctx context.Context, loc duplicate.Location, limit int) ([]domain.CustomerProfile, error) {
	if loc.CountryCode == "" && loc.City == "" {
		return nil, nil
	}

	query := "country_code = ?"
	args := []any{loc.CountryCode}
	if loc.City != "" {
		query += " AND LOWER(city) = LOWER(?)"
		args = append(args, loc.City)
	}

	return r.profiles(ctx, limit, query, args...)
}

func (r *DuplicateRepository) sharedValues(ctx context.Context, column string, limit int) ([]string, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var values []string
	err := r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).
		Scopes(analyzable).
		Where(column+" <> ''").
		Group(column).
		Having("COUNT(*) > 1").
		Order("COUNT(*) DESC").
		Limit(limit).
		Pluck(column, &values).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find shared %s: %w", column, err)
	}

	return values, nil
}

func (r *DuplicateRepository) SharedEmailHashes(ctx context.Context, limit int) ([]string, error) {
	return r.sharedValues(ctx, "email_hash", limit)
}

func (r *DuplicateRepository) SharedPhoneHashes(ctx context.Context, limit int) ([]string, error) {
	return r.sharedValues(ctx, "phone_hash", limit)
}

type locationRow struct {
	CountryCode string `gorm:"column:country_code"`
	City        string `gorm:"column:city"`
}

// LocationClusters returns places with more than one named profile, busiest first.
func (r *DuplicateRepository) LocationClusters(ctx context.Context, limit int) ([]duplicate.Location, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var rows []locationRow
	err := r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).
		Scopes(analyzable).
		Select("country_code, LOWER(city) AS city").
		Where("country_code <> '' AND city <> '' AND first_name <> ''").
		Group("country_code, LOWER(city)").
		Having("COUNT(*) > 1").
		Order("COUNT(*) DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find location clusters: %w", err)
	}

	out := make([]duplicate.Location, 0, len(rows))
	for _, row := range rows {
		out = append(out, duplicate.Location(row))
	}
	return out, nil
}

func (r *DuplicateRepository) CountAnalyzable(ctx context.Context) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}

	var count int64
	if err := r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).Scopes(analyzable).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}

	return count, nil
}

// UpsertMatch refreshes the score of a known pair and leaves its status alone.
func (r *DuplicateRepository) UpsertMatch(ctx context.Context, m *domain.DuplicateMatch) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	err := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_a_id"}, {Name: "customer_b_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"match_score", "match_type", "match_band", "confidence", "matched_fields", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("failed to upsert duplicate match: %w", err)
	}

	return nil
}

func (r *DuplicateRepository) FindMatch(ctx context.Context, id uint) (domain.DuplicateMatch, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.DuplicateMatch{}, false, err
	}

	var m domain.DuplicateMatch
	err := r.DB.WithContext(ctx).First(&m, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.DuplicateMatch{}, false, nil
		}
		return domain.DuplicateMatch{}, false, fmt.Errorf("failed to find duplicate match: %w", err)
	}

	return m, true, nil
}

func (r *DuplicateRepository) SaveMatch(ctx context.Context, m *domain.DuplicateMatch) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	if err := r.DB.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("failed to save duplicate match: %w", err)
	}

	return nil
}

func (r *DuplicateRepository) ResolvePair(ctx context.Context, idA, idB uint, status domain.MatchStatus, at time.Time) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if idB < idA {
		idA, idB = idB, idA
	}

	err := r.DB.WithContext(ctx).Model(&domain.DuplicateMatch{}).
		Where("customer_a_id = ? AND customer_b_id = ?", idA, idB).
		Updates(map[string]any{"status": status, "resolved_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to resolve duplicate match: %w", err)
	}

	return nil
}

func (r *DuplicateRepository) CountMatches(ctx context.Context, status domain.MatchStatus) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}

	var count int64
	if err := r.DB.WithContext(ctx).Model(&domain.DuplicateMatch{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count duplicate matches: %w", err)
	}

	return count, nil
}
