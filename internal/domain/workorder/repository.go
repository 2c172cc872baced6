package workorder

import (
	"context"

	"github.com/google/uuid"

	"github.com/dcasset/backend/internal/domain/shared"
)

// Repository is the persistence contract for work orders. Reads return the
// aggregate with its items preloaded.
type Repository interface {
	// FindByID loads a work order with its items, shared.ErrNotFound if absent
	FindByID(ctx context.Context, id uuid.UUID) (*WorkOrder, error)
	// FindByNumber loads a work order by its business number
	FindByNumber(ctx context.Context, number string) (*WorkOrder, error)
	// FindAll lists work orders matching the filter, most recent first
	FindAll(ctx context.Context, filter shared.Filter) ([]WorkOrder, error)
	// Count counts work orders matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	// FindActiveByTargetTag returns non-terminal work orders whose items
	// reference the given asset tag
	FindActiveByTargetTag(ctx context.Context, tag string) ([]WorkOrder, error)

	// Create persists a new work order along with its items;
	// shared.ErrConflict when the number already exists
	Create(ctx context.Context, wo *WorkOrder) error
	// SaveWithLock updates the work order row iff the stored version
	// matches the version it was loaded at (StoredVersion),
	// shared.ErrVersionConflict otherwise.
	SaveWithLock(ctx context.Context, wo *WorkOrder) error
	// SaveItems persists outcome changes on the given items
	SaveItems(ctx context.Context, items []WorkOrderItem) error
}
