package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"customerIntel/domain"
)

type CustomerRepository struct {
	DB *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{
		DB: db,
	}
}

func (r *CustomerRepository) first(ctx context.Context, query string, args ...any) (domain.CustomerProfile, bool, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.CustomerProfile{}, false, err
	}

	var p domain.CustomerProfile
	err := r.DB.WithContext(ctx).Where(query, args...).Order("id").First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.CustomerProfile{}, false, nil
		}
		return domain.CustomerProfile{}, false, fmt.Errorf("failed to find customer: %w", err)
	}

	return p, true, nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id uint) (domain.CustomerProfile, bool, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *CustomerRepository) FindByUUID(ctx context.Context, uuid string) (domain.CustomerProfile, bool, error) {
	return r.first(ctx, "uuid = ?", uuid)
}

// FindByEmailHash resolves the live profile owning an email hash.
func (r *CustomerRepository) FindByEmailHash(ctx context.Context, hash string) (domain.CustomerProfile, bool, error) {
	return r.first(ctx, "email_hash = ? AND is_merged = ?", hash, false)
}

func (r *CustomerRepository) FindByVisitorID(ctx context.Context, visitorID string) (domain.CustomerProfile, bool, error) {
	return r.first(ctx, "visitor_id = ? AND is_merged = ?", visitorID, false)
}

func (r *CustomerRepository) Create(ctx context.Context, p *domain.CustomerProfile) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	if err := r.DB.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

func (r *CustomerRepository) Save(ctx context.Context, p *domain.CustomerProfile) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	if err := r.DB.WithContext(ctx).Save(p).Error; err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}

	return nil
}

// lockPair loads both profiles FOR UPDATE, lower id first.
func lockPair(tx *gorm.DB, idA, idB uint) (map[uint]*domain.CustomerProfile, error) {
	var rows []domain.CustomerProfile
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", []uint{idA, idB}).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]*domain.CustomerProfile, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}
	return byID, nil
}

// MergeCustomers runs fn on the locked pair and re-points the source's
// events, sessions and conversions in the same transaction.
func (r *CustomerRepository) MergeCustomers(ctx context.Context, sourceID, targetID uint, fn func(source, target *domain.CustomerProfile) error) (domain.CustomerProfile, error) {
	if err := ctxErr(ctx); err != nil {
		return domain.CustomerProfile{}, err
	}

	var merged domain.CustomerProfile
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		byID, err := lockPair(tx, sourceID, targetID)
		if err != nil {
			return fmt.Errorf("failed to lock customers: %w", err)
		}
		source, target := byID[sourceID], byID[targetID]
		if source == nil || target == nil {
			return gorm.ErrRecordNotFound
		}

		if err := fn(source, target); err != nil {
			return err
		}

		if err := tx.Save(source).Error; err != nil {
			return fmt.Errorf("failed to save merged customer: %w", err)
		}
		if err := tx.Save(target).Error; err != nil {
			return fmt.Errorf("failed to save target customer: %w", err)
		}

		for _, model := range []any{&domain.Event{}, &domain.Session{}, &domain.Conversion{}} {
			if err := tx.Model(model).Where("customer_id = ?", sourceID).Update("customer_id", targetID).Error; err != nil {
				return fmt.Errorf("failed to re-point customer rows: %w", err)
			}
		}

		merged = *target
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.CustomerProfile{}, fmt.Errorf("merge %d into %d: %w", sourceID, targetID, err)
	}
	if err != nil {
		return domain.CustomerProfile{}, err
	}

	return merged, nil
}

// AnonymizeCustomer runs fn on the locked profile, drops the ip address and
// payload of its events and detaches its sessions from the visitor id.
func (r *CustomerRepository) AnonymizeCustomer(ctx context.Context, id uint, fn func(p *domain.CustomerProfile) error) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p domain.CustomerProfile
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
		if err != nil {
			return fmt.Errorf("failed to lock customer: %w", err)
		}

		if err := fn(&p); err != nil {
			return err
		}
		if err := tx.Save(&p).Error; err != nil {
			return fmt.Errorf("failed to save anonymized customer: %w", err)
		}

		err = tx.Model(&domain.Event{}).Where("customer_id = ?", id).
			Updates(map[string]any{"ip_address": "", "payload": gorm.Expr("NULL")}).Error
		if err != nil {
			return fmt.Errorf("failed to scrub events: %w", err)
		}

		err = tx.Model(&domain.Session{}).Where("customer_id = ?", id).
			Update("visitor_id", fmt.Sprintf("anonymized_%d", id)).Error
		if err != nil {
			return fmt.Errorf("failed to scrub sessions: %w", err)
		}

		return nil
	})
}

func (r *CustomerRepository) FindInBatches(ctx context.Context, scope domain.ProfileScope, batchSize int, fn func(batch []domain.CustomerProfile) error) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	var batch []domain.CustomerProfile
	res := r.DB.WithContext(ctx).
		Scopes(profileScope(scope)).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		})
	if res.Error != nil {
		return fmt.Errorf("failed to iterate customers: %w", res.Error)
	}

	return nil
}

func (r *CustomerRepository) SaveRFM(ctx context.Context, p *domain.CustomerProfile) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	err := r.DB.WithContext(ctx).Model(&domain.CustomerProfile{}).Where("id = ?", p.ID).
		Updates(map[string]any{
			"rfm_recency_score":   p.RFMRecencyScore,
			"rfm_frequency_score": p.RFMFrequencyScore,
			"rfm_monetary_score":  p.RFMMonetaryScore,
			"rfm_score":           p.RFMScore,
			"rfm_segment":         p.RFMSegment,
			"customer_segment":    p.CustomerSegment,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to save rfm: %w", err)
	}

	return nil
}

func (r *CustomerRepository) RecentEvents(ctx context.Context, customerID uint, limit int) ([]domain.Event, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	var events []domain.Event
	err := r.DB.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("occurred_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find customer events: %w", err)
	}

	return events, nil
}
