package asset

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/shared"
)

// AssetListFilter narrows the ledger listing
type AssetListFilter struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	Category   string `form:"category"`
	Datacenter string `form:"datacenter"`
	Stage      string `form:"stage"`
	Available  *bool  `form:"available"`
	Search     string `form:"search"`
	OrderBy    string `form:"order_by"`
	OrderDir   string `form:"order_dir"`
}

// AssetResponse is the API shape of a ledger record
type AssetResponse struct {
	ID                uuid.UUID       `json:"id"`
	Tag               string          `json:"tag"`
	SerialNumber      string          `json:"serial_number"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Model             string          `json:"model,omitempty"`
	Datacenter        string          `json:"datacenter,omitempty"`
	Room              string          `json:"room,omitempty"`
	Cabinet           string          `json:"cabinet,omitempty"`
	RackPosition      string          `json:"rack_position,omitempty"`
	PurchasePrice     decimal.Decimal `json:"purchase_price"`
	PowerDrawW        decimal.Decimal `json:"power_draw_w"`
	LifecycleStage    string          `json:"lifecycle_stage"`
	Available         bool            `json:"available"`
	UnavailableReason string          `json:"unavailable_reason,omitempty"`
	Attributes        json.RawMessage `json:"attributes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Version           int             `json:"version"`
}

// ToAssetResponse converts the aggregate to its API shape
func ToAssetResponse(a *asset.Asset) AssetResponse {
	var attributes json.RawMessage
	if a.Attributes != "" {
		attributes = json.RawMessage(a.Attributes)
	}

	return AssetResponse{
		ID:                a.ID,
		Tag:               a.Tag,
		SerialNumber:      a.SerialNumber,
		Name:              a.Name,
		Category:          a.Category,
		Model:             a.Model,
		Datacenter:        a.Datacenter,
		Room:              a.Room,
		Cabinet:           a.Cabinet,
		RackPosition:      a.RackPosition,
		PurchasePrice:     a.PurchasePrice,
		PowerDrawW:        a.PowerDrawW,
		LifecycleStage:    string(a.LifecycleStage),
		Available:         a.Available,
		UnavailableReason: a.UnavailableReason,
		Attributes:        attributes,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
		Version:           a.Version,
	}
}

// toSharedFilter maps the list filter onto the repository filter
func (f AssetListFilter) toSharedFilter() shared.Filter {
	filter := shared.DefaultFilter()
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	filter.Search = f.Search
	if f.OrderBy != "" {
		filter.OrderBy = f.OrderBy
	}
	if f.OrderDir != "" {
		filter.OrderDir = f.OrderDir
	}
	if f.Category != "" {
		filter.Filters["category"] = f.Category
	}
	if f.Datacenter != "" {
		filter.Filters["datacenter"] = f.Datacenter
	}
	if f.Stage != "" {
		filter.Filters["lifecycle_stage"] = f.Stage
	}
	if f.Available != nil {
		filter.Filters["available"] = *f.Available
	}
	return filter
}
