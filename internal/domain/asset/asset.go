package asset

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dcasset/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Asset represents one physical unit tracked by the ledger.
// It is the aggregate root for all asset state. The business key is Tag,
// which is immutable once assigned; SerialNumber is globally unique and
// enforced by the ledger at commit time.
type Asset struct {
	shared.BaseAggregateRoot
	Tag           string `gorm:"size:100;not null;uniqueIndex"`
	SerialNumber  string `gorm:"size:200;not null;uniqueIndex"`
	Name          string `gorm:"size:200;not null"`
	Category      string `gorm:"size:100;not null;index"`
	Model         string `gorm:"size:200"`
	Datacenter    string `gorm:"size:50;index"`
	Room          string `gorm:"size:50"`
	Cabinet       string `gorm:"size:50"`
	RackPosition  string `gorm:"size:50"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(15,2)"`
	PowerDrawW    decimal.Decimal `gorm:"type:decimal(8,2)"`

	LifecycleStage    LifecycleStage `gorm:"size:50;not null;default:'registered';index"`
	Available         bool           `gorm:"not null;default:true;index"`
	UnavailableReason string         `gorm:"type:text"`

	// Free-form configuration attributes (IP address, OS, memory, cabling
	// notes), merged by configuration-type work orders. Serialized JSON.
	Attributes string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Asset) TableName() string {
	return "assets"
}

// NewAsset creates a new asset in the registered stage
func NewAsset(tag, serialNumber, name, category string) (*Asset, error) {
	tag = strings.TrimSpace(tag)
	serialNumber = strings.TrimSpace(serialNumber)
	if tag == "" {
		return nil, shared.NewDomainError("INVALID_TAG", "Asset tag cannot be empty")
	}
	if serialNumber == "" {
		return nil, shared.NewDomainError("INVALID_SERIAL", "Serial number cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Asset name cannot be empty")
	}
	if category == "" {
		return nil, shared.NewDomainError("INVALID_CATEGORY", "Asset category cannot be empty")
	}

	a := &Asset{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Tag:               tag,
		SerialNumber:      serialNumber,
		Name:              name,
		Category:          category,
		LifecycleStage:    StageRegistered,
		Available:         true,
	}
	a.AddDomainEvent(NewAssetCreatedEvent(a))
	return a, nil
}

// SetAvailability flips the availability flag, enforcing the
// stage/availability compatibility table. A reason is required when the
// asset goes unavailable and cleared when it comes back.
func (a *Asset) SetAvailability(available bool, reason string) error {
	if !a.LifecycleStage.AllowsAvailability(available) {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("Stage %s does not permit available=%t", a.LifecycleStage, available))
	}
	if !available && strings.TrimSpace(reason) == "" {
		return shared.NewDomainError("INVALID_REASON", "A reason is required when marking an asset unavailable")
	}

	a.Available = available
	if available {
		a.UnavailableReason = ""
	} else {
		a.UnavailableReason = reason
	}
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewAvailabilityChangedEvent(a, available, reason))
	return nil
}

// AdvanceStage moves the asset to a new lifecycle stage. Leaving a terminal
// stage is not allowed. When the current availability is incompatible with
// the new stage, availability snaps to the stage default.
func (a *Asset) AdvanceStage(stage LifecycleStage, reason string) error {
	if !stage.IsValid() {
		return shared.NewDomainError("INVALID_STAGE", fmt.Sprintf("Unknown lifecycle stage: %s", stage))
	}
	if a.LifecycleStage.IsTerminal() {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("Cannot leave terminal stage %s", a.LifecycleStage))
	}

	from := a.LifecycleStage
	a.LifecycleStage = stage
	if !stage.AllowsAvailability(a.Available) {
		a.Available = stage.DefaultAvailability()
		if !a.Available {
			if reason == "" {
				reason = fmt.Sprintf("stage changed to %s", stage)
			}
			a.UnavailableReason = reason
		} else {
			a.UnavailableReason = ""
		}
	}
	a.UpdatedAt = time.Now()
	a.IncrementVersion()

	a.AddDomainEvent(NewStageChangedEvent(a, from, stage))
	return nil
}

// Relocate updates the physical location fields
func (a *Asset) Relocate(datacenter, room, cabinet, rackPosition string) {
	a.Datacenter = datacenter
	a.Room = room
	a.Cabinet = cabinet
	a.RackPosition = rackPosition
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
}

// MergeAttributes merges the given fields into the asset's configuration
// attributes, overwriting existing keys. Keys mapped to an empty string are
// removed.
func (a *Asset) MergeAttributes(fields map[string]string) error {
	if len(fields) == 0 {
		return shared.NewDomainError("INVALID_INPUT", "No attributes to merge")
	}

	current := map[string]string{}
	if a.Attributes != "" {
		if err := json.Unmarshal([]byte(a.Attributes), &current); err != nil {
			return fmt.Errorf("failed to decode asset attributes: %w", err)
		}
	}
	for k, v := range fields {
		if v == "" {
			delete(current, k)
			continue
		}
		current[k] = v
	}
	encoded, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode asset attributes: %w", err)
	}

	a.Attributes = string(encoded)
	a.UpdatedAt = time.Now()
	a.IncrementVersion()
	return nil
}

// AttributeMap decodes the configuration attributes into a map
func (a *Asset) AttributeMap() (map[string]string, error) {
	out := map[string]string{}
	if a.Attributes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(a.Attributes), &out); err != nil {
		return nil, fmt.Errorf("failed to decode asset attributes: %w", err)
	}
	return out, nil
}

// IsDecommissioned returns true once the asset has reached its terminal stage
func (a *Asset) IsDecommissioned() bool {
	return a.LifecycleStage == StageDecommissioned
}
