// Package asset exposes read access to the ledger over the API surface.
// All ledger mutations flow through work orders and batch imports; this
// service never writes.
package asset

import (
	"context"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/shared"
)

// LedgerQueryService serves ledger reads for the HTTP surface
type LedgerQueryService struct {
	assets asset.Repository
}

// NewLedgerQueryService creates a new LedgerQueryService
func NewLedgerQueryService(assets asset.Repository) *LedgerQueryService {
	return &LedgerQueryService{assets: assets}
}

// GetByTag retrieves one asset by its business tag
func (s *LedgerQueryService) GetByTag(ctx context.Context, tag string) (*AssetResponse, error) {
	a, err := s.assets.FindByTag(ctx, tag)
	if err != nil {
		return nil, err
	}
	response := ToAssetResponse(a)
	return &response, nil
}

// GetBySerialNumber retrieves one asset by serial number
func (s *LedgerQueryService) GetBySerialNumber(ctx context.Context, serialNumber string) (*AssetResponse, error) {
	a, err := s.assets.FindBySerialNumber(ctx, serialNumber)
	if err != nil {
		return nil, err
	}
	response := ToAssetResponse(a)
	return &response, nil
}

// List retrieves assets matching the filter
func (s *LedgerQueryService) List(ctx context.Context, filter AssetListFilter) (*shared.Paginated[AssetResponse], error) {
	repoFilter := filter.toSharedFilter()

	assets, err := s.assets.FindAll(ctx, repoFilter)
	if err != nil {
		return nil, err
	}
	total, err := s.assets.Count(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	responses := make([]AssetResponse, 0, len(assets))
	for i := range assets {
		responses = append(responses, ToAssetResponse(&assets[i]))
	}
	result := shared.NewPaginated(responses, total, repoFilter.Page, repoFilter.PageSize)
	return &result, nil
}
