package customer

import (
	"context"
	"fmt"
	"time"

	"customerIntel/domain"
	"customerIntel/pkg/logger"
	"customerIntel/pkg/metrics"
)

const (
	DefaultBatchSize = 500
	exportEventLimit = 1000
)

// ---- Repository interfaces ----

type CustomerRepository interface {
	FindByID(ctx context.Context, id uint) (domain.CustomerProfile, bool, error)
	FindByUUID(ctx context.Context, uuid string) (domain.CustomerProfile, bool, error)
	// MergeCustomers locks both rows, applies fn and re-points the source's
	// events, sessions and conversions to the target in one transaction.
	MergeCustomers(ctx context.Context, sourceID, targetID uint, fn func(source, target *domain.CustomerProfile) error) (domain.CustomerProfile, error)
	// AnonymizeCustomer locks the row, applies fn and scrubs related events and sessions.
	AnonymizeCustomer(ctx context.Context, id uint, fn func(p *domain.CustomerProfile) error) error
	FindInBatches(ctx context.Context, scope domain.ProfileScope, batchSize int, fn func(batch []domain.CustomerProfile) error) error
	SaveRFM(ctx context.Context, p *domain.CustomerProfile) error
	RecentEvents(ctx context.Context, customerID uint, limit int) ([]domain.Event, error)
}

// ---- Service ----

type CustomerService struct {
	repo      CustomerRepository
	cipher    PIICipher
	batchSize int
	now       func() time.Time
}

func NewCustomerService(repo CustomerRepository, cipher PIICipher, batchSize int) *CustomerService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &CustomerService{
		repo:      repo,
		cipher:    cipher,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (s *CustomerService) Get(ctx context.Context, id uint) (domain.CustomerProfile, error) {
	p, ok, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return domain.CustomerProfile{}, err
	}
	if !ok {
		return domain.CustomerProfile{}, ErrNotFound
	}
	return p, nil
}

func (s *CustomerService) GetByUUID(ctx context.Context, uuid string) (domain.CustomerProfile, error) {
	p, ok, err := s.repo.FindByUUID(ctx, uuid)
	if err != nil {
		return domain.CustomerProfile{}, err
	}
	if !ok {
		return domain.CustomerProfile{}, ErrNotFound
	}
	return p, nil
}

// RevealPII is the authorized read of a profile's raw contact fields.
func (s *CustomerService) RevealPII(ctx context.Context, id uint) (domain.CustomerPII, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return domain.CustomerPII{}, err
	}
	return RevealPII(p, s.cipher)
}

// Merge absorbs sourceID into targetID and returns the updated target.
func (s *CustomerService) Merge(ctx context.Context, sourceID, targetID uint) (domain.CustomerProfile, error) {
	if sourceID == targetID {
		return domain.CustomerProfile{}, ErrSelfMerge
	}

	now := s.now()
	target, err := s.repo.MergeCustomers(ctx, sourceID, targetID, func(source, target *domain.CustomerProfile) error {
		return MergeInto(source, target, now)
	})
	if err != nil {
		return domain.CustomerProfile{}, err
	}

	logger.Info("customer merged", "source_id", sourceID, "target_id", targetID)
	return target, nil
}

func (s *CustomerService) Anonymize(ctx context.Context, id uint) error {
	now := s.now()
	err := s.repo.AnonymizeCustomer(ctx, id, func(p *domain.CustomerProfile) error {
		if p.IsAnonymized {
			return ErrAnonymized
		}
		Anonymize(p, now)
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("customer anonymized", "customer_id", id)
	return nil
}

// ExportPersonalData collects everything stored about one profile.
func (s *CustomerService) ExportPersonalData(ctx context.Context, id uint) (domain.CustomerDataExport, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return domain.CustomerDataExport{}, err
	}

	pii, err := RevealPII(p, s.cipher)
	if err != nil {
		return domain.CustomerDataExport{}, fmt.Errorf("reveal pii: %w", err)
	}

	events, err := s.repo.RecentEvents(ctx, id, exportEventLimit)
	if err != nil {
		return domain.CustomerDataExport{}, err
	}

	out := domain.CustomerDataExport{
		UUID:          p.UUID.String(),
		Identity:      pii,
		CountryCode:   p.CountryCode,
		Region:        p.Region,
		City:          p.City,
		PostalCode:    p.PostalCode,
		FirstSeenAt:   p.FirstSeenAt,
		LastSeenAt:    p.LastSeenAt,
		TotalVisits:   p.TotalVisits,
		TotalOrders:   p.TotalOrders,
		TotalSpent:    p.TotalSpent,
		FirstSource:   p.FirstSource,
		FirstMedium:   p.FirstMedium,
		FirstCampaign: p.FirstCampaign,
		Events:        make([]domain.ExportedEvent, 0, len(events)),
	}
	for _, e := range events {
		out.Events = append(out.Events, domain.ExportedEvent{Type: e.Type, PageURL: e.PageURL, CreatedAt: e.CreatedAt})
	}
	return out, nil
}

// RecalculateRFM rescores every analyzable profile in the scope.
func (s *CustomerService) RecalculateRFM(ctx context.Context, tenantID *uint) (domain.BatchResult, error) {
	started := time.Now()
	now := s.now()
	var res domain.BatchResult

	err := s.repo.FindInBatches(ctx, domain.ProfileScope{TenantID: tenantID}, s.batchSize, func(batch []domain.CustomerProfile) error {
		for i := range batch {
			p := &batch[i]
			ScoreRFM(p, now)
			UpdateSegment(p, now)
			if err := s.repo.SaveRFM(ctx, p); err != nil {
				logger.Warn("rfm update failed", "customer_id", p.ID, "error", err)
				res.Errors++
				continue
			}
			res.Updated++
		}
		return ctx.Err()
	})

	metrics.ObserveBatch("rfm", res.Updated, res.Errors)
	metrics.BatchDuration.WithLabelValues("rfm").Observe(time.Since(started).Seconds())
	logger.Info("rfm pass finished", "updated", res.Updated, "errors", res.Errors)

	return res, err
}
