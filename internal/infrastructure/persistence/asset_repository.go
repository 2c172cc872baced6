package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// GormAssetRepository implements the asset ledger contract using GORM
type GormAssetRepository struct {
	db *gorm.DB
}

// NewGormAssetRepository creates a new GormAssetRepository
func NewGormAssetRepository(db *gorm.DB) *GormAssetRepository {
	return &GormAssetRepository{db: db}
}

// FindByTag finds an asset by its business tag
func (r *GormAssetRepository) FindByTag(ctx context.Context, tag string) (*asset.Asset, error) {
	var a asset.Asset
	if err := r.db.WithContext(ctx).First(&a, "tag = ?", tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindBySerialNumber finds an asset by serial number
func (r *GormAssetRepository) FindBySerialNumber(ctx context.Context, serialNumber string) (*asset.Asset, error) {
	var a asset.Asset
	if err := r.db.WithContext(ctx).First(&a, "serial_number = ?", serialNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindAll lists assets matching the filter
func (r *GormAssetRepository) FindAll(ctx context.Context, filter shared.Filter) ([]asset.Asset, error) {
	var assets []asset.Asset
	query := r.applyFilter(r.db.WithContext(ctx).Model(&asset.Asset{}), filter)
	if err := query.Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

// Count counts assets matching the filter
func (r *GormAssetRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	var count int64
	query := r.applyFilterWithoutPagination(r.db.WithContext(ctx).Model(&asset.Asset{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Create persists a new asset. A unique violation on the tag or serial
// number maps to shared.ErrConflict.
func (r *GormAssetRepository) Create(ctx context.Context, a *asset.Asset) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrConflict
		}
		return err
	}
	a.MarkPersisted()
	return nil
}

// SaveWithLock updates an asset with optimistic locking. The compare value
// is StoredVersion because one save may carry several version increments.
func (r *GormAssetRepository) SaveWithLock(ctx context.Context, a *asset.Asset) error {
	result := r.db.WithContext(ctx).
		Model(a).
		Where("id = ? AND version = ?", a.ID, a.StoredVersion()).
		Updates(map[string]interface{}{
			"name":               a.Name,
			"model":              a.Model,
			"datacenter":         a.Datacenter,
			"room":               a.Room,
			"cabinet":            a.Cabinet,
			"rack_position":      a.RackPosition,
			"purchase_price":     a.PurchasePrice,
			"power_draw_w":       a.PowerDrawW,
			"lifecycle_stage":    a.LifecycleStage,
			"available":          a.Available,
			"unavailable_reason": a.UnavailableReason,
			"attributes":         a.Attributes,
			"version":            a.Version,
			"updated_at":         a.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrVersionConflict
	}
	a.MarkPersisted()
	return nil
}

func (r *GormAssetRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, AssetSortFields, "created_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	return query
}

func (r *GormAssetRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("tag ILIKE ? OR serial_number ILIKE ? OR name ILIKE ?", pattern, pattern, pattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "category":
			query = query.Where("category = ?", value)
		case "datacenter":
			query = query.Where("datacenter = ?", value)
		case "lifecycle_stage":
			query = query.Where("lifecycle_stage = ?", value)
		case "available":
			query = query.Where("available = ?", value)
		}
	}

	return query
}

// isUniqueViolation reports whether err is a unique-index violation. GORM
// translates these to ErrDuplicatedKey when TranslateError is enabled; the
// SQLSTATE fallback covers connections opened without translation.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key")
}

// Ensure GormAssetRepository implements asset.Repository
var _ asset.Repository = (*GormAssetRepository)(nil)
