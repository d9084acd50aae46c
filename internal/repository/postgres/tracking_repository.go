package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"customerIntel/domain"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{
		DB: db,
	}
}

func (r *SessionRepository) FindBySessionID(ctx context.Context, sessionID string) (domain.Session, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.Session{}, false, err
	}

	var s domain.Session
	err := r.DB.WithContext(ctx).Where("session_id = ?", sessionID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Session{}, false, nil
		}
		return domain.Session{}, false, fmt.Errorf("failed to find session: %w", err)
	}

	return s, true, nil
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	if err := r.DB.WithContext(ctx).Create(s).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

func (r *SessionRepository) Save(ctx context.Context, s *domain.Session) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	if err := r.DB.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// FindIdle returns open sessions whose last activity is before cutoff.
func (r *SessionRepository) FindIdle(ctx context.Context, cutoff time.Time, limit int) ([]domain.Session, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var sessions []domain.Session
	err := r.DB.WithContext(ctx).
		Where("ended_at IS NULL AND last_activity_at < ?", cutoff).
		Order("id").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find idle sessions: %w", err)
	}

	return sessions, nil
}

type EventRepository struct {
	DB *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{
		DB: db,
	}
}

func (r *EventRepository) Create(ctx context.Context, e *domain.Event) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	if err := r.DB.WithContext(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

func (r *EventRepository) FindEvent(ctx context.Context, id uint) (domain.Event, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.Event{}, false, err
	}

	var e domain.Event
	err := r.DB.WithContext(ctx).First(&e, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Event{}, false, nil
		}
		return domain.Event{}, false, fmt.Errorf("failed to find event: %w", err)
	}

	return e, true, nil
}

func (r *EventRepository) EventsBetween(ctx context.Context, customerID uint, from, before time.Time) ([]domain.Event, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var events []domain.Event
	err := r.DB.WithContext(ctx).
		Where("customer_id = ? AND occurred_at >= ? AND occurred_at < ?", customerID, from, before).
		Order("occurred_at, id").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find journey events: %w", err)
	}

	return events, nil
}

func (r *EventRepository) ConvertedEvents(ctx context.Context, tenantID *uint, start, end time.Time, positiveValueOnly bool) ([]domain.Event, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	q := r.DB.WithContext(ctx).
		Scopes(rowTenant(tenantID)).
		Where("is_converted = ? AND customer_id IS NOT NULL AND created_at BETWEEN ? AND ?", true, start, end)
	if positiveValueOnly {
		q = q.Where("conversion_value > 0")
	}

	var events []domain.Event
	if err := q.Order("created_at, id").Find(&events).Error; err != nil {
		return nil, fmt.Errorf("failed to find conversions: %w", err)
	}

	return events, nil
}

func (r *EventRepository) CustomerEvents(ctx context.Context, customerID uint) ([]domain.Event, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var events []domain.Event
	err := r.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("occurred_at, id").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find customer events: %w", err)
	}

	return events, nil
}

func (r *EventRepository) CustomerExists(ctx context.Context, customerID uint) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}

	var count int64
	err := r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).Where("id = ?", customerID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check customer: %w", err)
	}

	return count > 0, nil
}

type realTimeRow struct {
	Events      int64   `gorm:"column:events"`
	Conversions int64   `gorm:"column:conversions"`
	Revenue     float64 `gorm:"column:revenue"`
}

// RealTimeStats summarizes the last hour of activity at now.
func (r *EventRepository) RealTimeStats(ctx context.Context, tenantID *uint, now time.Time) (domain.RealTimeStats, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.RealTimeStats{}, err
	}

	stats := domain.RealTimeStats{GeneratedAt: now}
	err := r.DB.WithContext(ctx).Model(&domain.Session{}).
		Scopes(rowTenant(tenantID)).
		Where("ended_at IS NULL AND last_activity_at >= ?", now.Add(-domain.SessionIdleTimeout)).
		Count(&stats.ActiveSessions).Error
	if err != nil {
		return domain.RealTimeStats{}, fmt.Errorf("failed to count active sessions: %w", err)
	}

	var row realTimeRow
	err = r.DB.WithContext(ctx).Model(&domain.Event{}).
		Scopes(rowTenant(tenantID)).
		Select(`COUNT(*) AS events,
			COUNT(*) FILTER (WHERE is_converted) AS conversions,
			COALESCE(SUM(conversion_value) FILTER (WHERE is_converted), 0) AS revenue`).
		Where("occurred_at >= ?", now.Add(-time.Hour)).
		Scan(&row).Error
	if err != nil {
		return domain.RealTimeStats{}, fmt.Errorf("failed to summarize events: %w", err)
	}

	stats.EventsLastHour = row.Events
	stats.ConversionsHour = row.Conversions
	stats.RevenueLastHour = row.Revenue
	return stats, nil
}

type ConversionRepository struct {
	DB *gorm.DB
}

func NewConversionRepository(db *gorm.DB) *ConversionRepository {
	return &ConversionRepository{
		DB: db,
	}
}

// ActiveAccounts returns platform-wide accounts plus the tenant's own.
func (r *ConversionRepository) ActiveAccounts(ctx context.Context, tenantID *uint) ([]domain.AdAccount, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	q := r.DB.WithContext(ctx).Where("is_active = ? AND receive_conversions = ?", true, true)
	if tenantID == nil {
		q = q.Where("tenant_id IS NULL")
	} else {
		q = q.Where("tenant_id IS NULL OR tenant_id = ?", *tenantID)
	}

	var accounts []domain.AdAccount
	if err := q.Order("id").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("failed to find ad accounts: %w", err)
	}

	return accounts, nil
}

func (r *ConversionRepository) Create(ctx context.Context, c *domain.Conversion) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	if err := r.DB.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create conversion: %w", err)
	}

	return nil
}

func (r *ConversionRepository) Pending(ctx context.Context, limit int) ([]domain.Conversion, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var conversions []domain.Conversion
	err := r.DB.WithContext(ctx).
		Where("status = ?", domain.ConversionPending).
		Order("created_at, id").
		Limit(limit).
		Find(&conversions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending conversions: %w", err)
	}

	return conversions, nil
}

func (r *ConversionRepository) Save(ctx context.Context, c *domain.Conversion) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	if err := r.DB.WithContext(ctx).Save(c).Error; err != nil {
		return fmt.Errorf("failed to save conversion: %w", err)
	}

	return nil
}

func (r *ConversionRepository) FindByConversionID(ctx context.Context, conversionID string) (domain.Conversion, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.Conversion{}, false, err
	}

	var c domain.Conversion
	err := r.DB.WithContext(ctx).Where("conversion_id = ?", conversionID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Conversion{}, false, nil
		}
		return domain.Conversion{}, false, fmt.Errorf("failed to find conversion: %w", err)
	}

	return c, true, nil
}
