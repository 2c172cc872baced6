package asset

import (
	"github.com/dcasset/backend/internal/domain/shared"
)

// Event types for the asset aggregate
const (
	EventAssetCreated        = "asset.created"
	EventAvailabilityChanged = "asset.availability_changed"
	EventStageChanged        = "asset.stage_changed"
)

// AssetCreatedEvent is emitted when a new asset enters the ledger
type AssetCreatedEvent struct {
	shared.BaseDomainEvent
	Tag          string `json:"tag"`
	SerialNumber string `json:"serial_number"`
	Category     string `json:"category"`
}

// NewAssetCreatedEvent creates a new AssetCreatedEvent
func NewAssetCreatedEvent(a *Asset) *AssetCreatedEvent {
	return &AssetCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventAssetCreated, "Asset", a.ID),
		Tag:             a.Tag,
		SerialNumber:    a.SerialNumber,
		Category:        a.Category,
	}
}

// AvailabilityChangedEvent is emitted when the availability flag flips
type AvailabilityChangedEvent struct {
	shared.BaseDomainEvent
	Tag       string `json:"tag"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// NewAvailabilityChangedEvent creates a new AvailabilityChangedEvent
func NewAvailabilityChangedEvent(a *Asset, available bool, reason string) *AvailabilityChangedEvent {
	return &AvailabilityChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventAvailabilityChanged, "Asset", a.ID),
		Tag:             a.Tag,
		Available:       available,
		Reason:          reason,
	}
}

// StageChangedEvent is emitted when the lifecycle stage moves
type StageChangedEvent struct {
	shared.BaseDomainEvent
	Tag       string         `json:"tag"`
	FromStage LifecycleStage `json:"from_stage"`
	ToStage   LifecycleStage `json:"to_stage"`
}

// NewStageChangedEvent creates a new StageChangedEvent
func NewStageChangedEvent(a *Asset, from, to LifecycleStage) *StageChangedEvent {
	return &StageChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventStageChanged, "Asset", a.ID),
		Tag:             a.Tag,
		FromStage:       from,
		ToStage:         to,
	}
}
