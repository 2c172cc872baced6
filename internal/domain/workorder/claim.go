package workorder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TargetClaim marks an asset tag as reserved by an active work order of an
// exclusive type. The unique index on AssetTag is what enforces the
// single-claimant rule under concurrency.
type TargetClaim struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	AssetTag    string    `gorm:"size:100;not null;uniqueIndex"`
	WorkOrderID uuid.UUID `gorm:"type:uuid;not null;index"`
	CreatedAt   time.Time
}

// TableName returns the table name for GORM
func (TargetClaim) TableName() string {
	return "work_order_target_claims"
}

// NewTargetClaim creates a claim for one asset tag
func NewTargetClaim(workOrderID uuid.UUID, assetTag string) TargetClaim {
	return TargetClaim{
		ID:          uuid.New(),
		AssetTag:    assetTag,
		WorkOrderID: workOrderID,
		CreatedAt:   time.Now(),
	}
}

// ClaimRepository manages target claims. Claiming is all-or-nothing: when
// any tag in the set is already claimed the whole call fails with
// shared.ErrTargetLocked and nothing is inserted.
type ClaimRepository interface {
	// ClaimTargets reserves all tags for the work order atomically
	ClaimTargets(ctx context.Context, workOrderID uuid.UUID, tags []string) error
	// ReleaseByWorkOrder drops every claim held by the work order
	ReleaseByWorkOrder(ctx context.Context, workOrderID uuid.UUID) error
	// FindByTags returns existing claims for any of the given tags
	FindByTags(ctx context.Context, tags []string) ([]TargetClaim, error)
}
