package persistence

import (
	"context"
	"errors"

	"github.com/dcasset/backend/internal/domain/batch"
	"github.com/dcasset/backend/internal/domain/shared"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBatchJobRepository implements the batch import job repository using GORM
type GormBatchJobRepository struct {
	db *gorm.DB
}

// NewGormBatchJobRepository creates a new GormBatchJobRepository
func NewGormBatchJobRepository(db *gorm.DB) *GormBatchJobRepository {
	return &GormBatchJobRepository{db: db}
}

// FindByID loads a batch import job
func (r *GormBatchJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*batch.BatchJob, error) {
	var job batch.BatchJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// FindAll lists jobs matching the filter
func (r *GormBatchJobRepository) FindAll(ctx context.Context, filter shared.Filter) ([]batch.BatchJob, error) {
	var jobs []batch.BatchJob
	query := r.applyFilter(r.db.WithContext(ctx).Model(&batch.BatchJob{}), filter)
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Count counts jobs matching the filter
func (r *GormBatchJobRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&batch.BatchJob{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create persists a new job
func (r *GormBatchJobRepository) Create(ctx context.Context, job *batch.BatchJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return err
	}
	job.MarkPersisted()
	return nil
}

// Save persists settlement of an existing job
func (r *GormBatchJobRepository) Save(ctx context.Context, job *batch.BatchJob) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return err
	}
	job.MarkPersisted()
	return nil
}

func (r *GormBatchJobRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, BatchJobSortFields, "created_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	return query
}

func (r *GormBatchJobRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "imported_by":
			query = query.Where("imported_by = ?", value)
		}
	}
	return query
}

// Ensure GormBatchJobRepository implements batch.Repository
var _ batch.Repository = (*GormBatchJobRepository)(nil)
