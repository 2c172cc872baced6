package asset

import (
	"context"

	"github.com/dcasset/backend/internal/domain/shared"
)

// Reader provides read-only access to the ledger, used by work-order
// precondition checks that must inspect current asset state without being
// able to mutate it.
type Reader interface {
	// FindByTag finds an asset by its business tag, shared.ErrNotFound if absent
	FindByTag(ctx context.Context, tag string) (*Asset, error)
	// FindBySerialNumber finds an asset by serial number, shared.ErrNotFound if absent
	FindBySerialNumber(ctx context.Context, serialNumber string) (*Asset, error)
}

// Repository is the ledger contract for asset records. Mutations go through
// Create and SaveWithLock only; SaveWithLock performs a compare-and-update on
// the version counter and fails with shared.ErrVersionConflict on a stale
// write.
type Repository interface {
	Reader

	// FindAll lists assets matching the filter
	FindAll(ctx context.Context, filter shared.Filter) ([]Asset, error)
	// Count counts assets matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// Create persists a new asset; shared.ErrConflict when the tag or
	// serial number already exists
	Create(ctx context.Context, a *Asset) error
	// SaveWithLock updates an existing asset iff the stored version matches
	// the version the aggregate was loaded at (StoredVersion)
	SaveWithLock(ctx context.Context, a *Asset) error
}
