package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"customerIntel/domain"
)

// analyzable keeps profiles that still take part in analytical passes.
func analyzable(db *gorm.DB) *gorm.DB {
	return db.Where("is_merged = ? AND is_anonymized = ?", false, false)
}

func purchasers(db *gorm.DB) *gorm.DB {
	return db.Where("total_orders > 0")
}

// profileTenant matches profiles whose tenant_ids array holds the tenant.
func profileTenant(tenantID *uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == nil {
			return db
		}
		return db.Where("tenant_ids @> ?::jsonb", fmt.Sprintf("[%d]", *tenantID))
	}
}

// rowTenant filters tables carrying a plain tenant_id column.
func rowTenant(tenantID *uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if tenantID == nil {
			return db
		}
		return db.Where("tenant_id = ?", *tenantID)
	}
}

func profileScope(scope domain.ProfileScope) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		db = db.Scopes(analyzable, profileTenant(scope.TenantID))
		if scope.PurchasersOnly {
			db = db.Scopes(purchasers)
		}
		return db
	}
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}
	return nil
}
