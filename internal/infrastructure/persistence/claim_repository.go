package persistence

import (
	"context"

	"github.com/dcasset/backend/internal/domain/shared"
	"github.com/dcasset/backend/internal/domain/workorder"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormClaimRepository implements the target claim repository using GORM.
// The unique index on asset_tag is the actual arbiter: concurrent claimants
// race on the insert and exactly one wins.
type GormClaimRepository struct {
	db *gorm.DB
}

// NewGormClaimRepository creates a new GormClaimRepository
func NewGormClaimRepository(db *gorm.DB) *GormClaimRepository {
	return &GormClaimRepository{db: db}
}

// ClaimTargets reserves all tags for the work order atomically. A unique
// violation on any tag rolls back every insert and returns ErrTargetLocked.
func (r *GormClaimRepository) ClaimTargets(ctx context.Context, workOrderID uuid.UUID, tags []string) error {
	if len(tags) == 0 {
		return nil
	}

	claims := make([]workorder.TargetClaim, 0, len(tags))
	for _, tag := range tags {
		claims = append(claims, workorder.NewTargetClaim(workOrderID, tag))
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&claims).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrTargetLocked
		}
		return err
	}
	return nil
}

// ReleaseByWorkOrder drops every claim held by the work order
func (r *GormClaimRepository) ReleaseByWorkOrder(ctx context.Context, workOrderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&workorder.TargetClaim{}, "work_order_id = ?", workOrderID).Error
}

// FindByTags returns existing claims for any of the given tags
func (r *GormClaimRepository) FindByTags(ctx context.Context, tags []string) ([]workorder.TargetClaim, error) {
	if len(tags) == 0 {
		return []workorder.TargetClaim{}, nil
	}
	var claims []workorder.TargetClaim
	if err := r.db.WithContext(ctx).
		Where("asset_tag IN ?", tags).
		Find(&claims).Error; err != nil {
		return nil, err
	}
	return claims, nil
}

// Ensure GormClaimRepository implements workorder.ClaimRepository
var _ workorder.ClaimRepository = (*GormClaimRepository)(nil)
