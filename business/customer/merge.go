package customer

import (
	"errors"
	"slices"
	"time"

	"customerIntel/domain"
)

var (
	ErrNotFound      = errors.New("customer not found")
	ErrAlreadyMerged = errors.New("cannot merge an already merged customer")
	ErrTargetMerged  = errors.New("cannot merge into an already merged customer")
	ErrSelfMerge     = errors.New("cannot merge a customer into itself")
	ErrAnonymized    = errors.New("customer is anonymized")
)

// MergeInto folds source into target. Both profiles are mutated; the caller
// persists them together with the re-pointed events, sessions and conversions.
func MergeInto(source, target *domain.CustomerProfile, now time.Time) error {
	if source.ID == target.ID {
		return ErrSelfMerge
	}
	if source.IsMerged {
		return ErrAlreadyMerged
	}
	if target.IsMerged {
		return ErrTargetMerged
	}
	if source.IsAnonymized || target.IsAnonymized {
		return ErrAnonymized
	}

	target.TotalOrders += source.TotalOrders
	target.TotalSpent += source.TotalSpent
	target.TotalTickets += source.TotalTickets
	target.TotalVisits += source.TotalVisits
	target.TotalPageviews += source.TotalPageviews
	target.TotalSessions += source.TotalSessions

	if earlier(source.FirstSeenAt, target.FirstSeenAt) {
		target.FirstSeenAt = source.FirstSeenAt
		AssignCohort(target)
	}
	if earlier(source.FirstPurchaseAt, target.FirstPurchaseAt) {
		target.FirstPurchaseAt = source.FirstPurchaseAt
	}
	if later(source.LastSeenAt, target.LastSeenAt) {
		target.LastSeenAt = source.LastSeenAt
	}
	if later(source.LastPurchaseAt, target.LastPurchaseAt) {
		target.LastPurchaseAt = source.LastPurchaseAt
	}

	target.RFMScore = max(target.RFMScore, source.RFMScore)
	target.HealthScore = max(target.HealthScore, source.HealthScore)

	for _, id := range source.TenantIDs {
		AddTenant(target, id)
	}

	devices := append(slices.Clone([]string(source.LinkedDeviceIDs)), source.PrimaryDeviceID)
	for _, d := range devices {
		if d != "" && !slices.Contains(target.LinkedDeviceIDs, d) {
			target.LinkedDeviceIDs = append(target.LinkedDeviceIDs, d)
		}
	}

	if u := source.UUID.String(); !slices.Contains(target.LinkedCustomerUUIDs, u) {
		target.LinkedCustomerUUIDs = append(target.LinkedCustomerUUIDs, u)
	}

	if target.TotalOrders > 0 {
		target.AverageOrderValue = target.TotalSpent / float64(target.TotalOrders)
	}
	target.LifetimeValue = target.TotalSpent

	targetID := target.ID
	source.IsMerged = true
	source.MergedIntoID = &targetID
	source.MergedAt = timePtr(now)

	return nil
}

func earlier(a, b *time.Time) bool {
	return a != nil && (b == nil || a.Before(*b))
}

func later(a, b *time.Time) bool {
	return a != nil && (b == nil || a.After(*b))
}
