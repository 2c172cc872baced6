package batch

import (
	"context"

	"github.com/google/uuid"

	"github.com/dcasset/backend/internal/domain/shared"
)

// Repository is the persistence contract for batch import jobs
type Repository interface {
	// FindByID loads a job, shared.ErrNotFound if absent
	FindByID(ctx context.Context, id uuid.UUID) (*BatchJob, error)
	// FindAll lists jobs matching the filter, most recent first
	FindAll(ctx context.Context, filter shared.Filter) ([]BatchJob, error)
	// Count counts jobs matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)
	// Create persists a new job
	Create(ctx context.Context, job *BatchJob) error
	// Save persists settlement of an existing job
	Save(ctx context.Context, job *BatchJob) error
}
