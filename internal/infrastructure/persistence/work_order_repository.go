package persistence

import (
	"context"
	"errors"

	"github.com/dcasset/backend/internal/domain/shared"
	"github.com/dcasset/backend/internal/domain/workorder"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormWorkOrderRepository implements the work order repository using GORM
type GormWorkOrderRepository struct {
	db *gorm.DB
}

// NewGormWorkOrderRepository creates a new GormWorkOrderRepository
func NewGormWorkOrderRepository(db *gorm.DB) *GormWorkOrderRepository {
	return &GormWorkOrderRepository{db: db}
}

// FindByID loads a work order with its items preloaded
func (r *GormWorkOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*workorder.WorkOrder, error) {
	var wo workorder.WorkOrder
	if err := r.db.WithContext(ctx).Preload("Items").First(&wo, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &wo, nil
}

// FindByNumber loads a work order by its business number
func (r *GormWorkOrderRepository) FindByNumber(ctx context.Context, number string) (*workorder.WorkOrder, error) {
	var wo workorder.WorkOrder
	if err := r.db.WithContext(ctx).Preload("Items").First(&wo, "number = ?", number).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &wo, nil
}

// FindAll lists work orders matching the filter
func (r *GormWorkOrderRepository) FindAll(ctx context.Context, filter shared.Filter) ([]workorder.WorkOrder, error) {
	var orders []workorder.WorkOrder
	query := r.applyFilter(r.db.WithContext(ctx).Model(&workorder.WorkOrder{}).Preload("Items"), filter)
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Count counts work orders matching the filter
func (r *GormWorkOrderRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&workorder.WorkOrder{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FindActiveByTargetTag returns non-terminal work orders whose items
// reference the given asset tag
func (r *GormWorkOrderRepository) FindActiveByTargetTag(ctx context.Context, tag string) ([]workorder.WorkOrder, error) {
	var orders []workorder.WorkOrder
	if err := r.db.WithContext(ctx).
		Model(&workorder.WorkOrder{}).
		Preload("Items").
		Joins("JOIN work_order_items ON work_order_items.work_order_id = work_orders.id").
		Where("work_order_items.asset_tag = ?", tag).
		Where("work_orders.status IN ?", []workorder.Status{workorder.StatusCreated, workorder.StatusExecuting}).
		Distinct("work_orders.*").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Create persists a new work order along with its items. A unique violation
// on the number maps to shared.ErrConflict.
func (r *GormWorkOrderRepository) Create(ctx context.Context, wo *workorder.WorkOrder) error {
	if err := r.db.WithContext(ctx).Create(wo).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	}
	wo.MarkPersisted()
	return nil
}

// SaveWithLock updates the work order row with optimistic locking. Items are
// not touched here; use SaveItems for item outcomes.
func (r *GormWorkOrderRepository) SaveWithLock(ctx context.Context, wo *workorder.WorkOrder) error {
	result := r.db.WithContext(ctx).
		Model(wo).
		Where("id = ? AND version = ?", wo.ID, wo.StoredVersion()).
		Updates(map[string]interface{}{
			"status":        wo.Status,
			"operator":      wo.Operator,
			"assignee":      wo.Assignee,
			"reviewer":      wo.Reviewer,
			"cancel_reason": wo.CancelReason,
			"executed_at":   wo.ExecutedAt,
			"completed_at":  wo.CompletedAt,
			"cancelled_at":  wo.CancelledAt,
			"version":       wo.Version,
			"updated_at":    wo.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrVersionConflict
	}
	wo.MarkPersisted()
	return nil
}

// SaveItems persists outcome changes on the given items
func (r *GormWorkOrderRepository) SaveItems(ctx context.Context, items []workorder.WorkOrderItem) error {
	for i := range items {
		item := &items[i]
		if err := r.db.WithContext(ctx).
			Model(item).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"status":        item.Status,
				"error_code":    item.ErrorCode,
				"error_message": item.ErrorMessage,
				"settled_at":    item.SettledAt,
				"updated_at":    item.UpdatedAt,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *GormWorkOrderRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, WorkOrderSortFields, "created_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	return query
}

func (r *GormWorkOrderRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("number ILIKE ? OR title ILIKE ?", pattern, pattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "type":
			query = query.Where("type = ?", value)
		case "status":
			query = query.Where("status = ?", value)
		case "creator":
			query = query.Where("creator = ?", value)
		}
	}

	return query
}

// Ensure GormWorkOrderRepository implements workorder.Repository
var _ workorder.Repository = (*GormWorkOrderRepository)(nil)
