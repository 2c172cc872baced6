package workorder

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/dcasset/backend/internal/domain/asset"
	"github.com/dcasset/backend/internal/domain/shared"
)

const (
	TypeReceiving        = "receiving"
	TypeRacking          = "racking"
	TypePowerManagement  = "power_management"
	TypeConfiguration    = "configuration"
	TypeNetworkCable     = "network_cable"
	TypeFaultHandling    = "fault_handling"
	TypeGenericOperation = "generic_operation"
)

// NewDefaultRegistry returns a registry preloaded with the built-in work
// order types
func NewDefaultRegistry(validate *validator.Validate) (*Registry, error) {
	registry := NewRegistry()
	builtins := map[string]TypeBehavior{
		TypeReceiving:        &ReceivingBehavior{validate: validate},
		TypeRacking:          &RackingBehavior{validate: validate},
		TypePowerManagement:  &PowerManagementBehavior{validate: validate},
		TypeConfiguration:    &ConfigurationBehavior{validate: validate},
		TypeNetworkCable:     &NetworkCableBehavior{validate: validate},
		TypeFaultHandling:    &FaultHandlingBehavior{validate: validate},
		TypeGenericOperation: &GenericOperationBehavior{validate: validate},
	}
	for tag, behavior := range builtins {
		if err := registry.Register(tag, behavior); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func decodePayload(validate *validator.Validate, payload []byte, target any) error {
	if len(payload) == 0 {
		return shared.NewDomainError("VALIDATION_ERROR", "Payload is required for this work order type")
	}
	if err := json.Unmarshal(payload, target); err != nil {
		return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	if err := validate.Struct(target); err != nil {
		return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Invalid payload: %v", err))
	}
	return nil
}

// oneItemPerTarget is the default item expansion
func oneItemPerTarget(targets []string) ([]ItemSpec, error) {
	if len(targets) == 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "At least one target asset is required")
	}
	seen := make(map[string]struct{}, len(targets))
	items := make([]ItemSpec, 0, len(targets))
	for _, tag := range targets {
		if tag == "" {
			return nil, shared.NewDomainError("VALIDATION_ERROR", "Target asset tag cannot be empty")
		}
		if _, dup := seen[tag]; dup {
			return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Duplicate target asset: %s", tag))
		}
		seen[tag] = struct{}{}
		t := tag
		items = append(items, ItemSpec{AssetTag: &t})
	}
	return items, nil
}

// requireExisting loads every target and applies check to each. The error
// names the offending asset.
func requireExisting(ctx context.Context, ledger asset.Reader, targets []string, check func(a *asset.Asset) error) error {
	for _, tag := range targets {
		a, err := ledger.FindByTag(ctx, tag)
		if err != nil {
			if shared.IsDomainError(err, "NOT_FOUND") {
				return shared.NewDomainError("PRECONDITION_FAILED", fmt.Sprintf("Asset not found: %s", tag))
			}
			return err
		}
		if check != nil {
			if err := check(a); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReceivingPayload describes a batch of devices arriving at the datacenter.
// The assets do not exist yet; receiving creates them.
type ReceivingPayload struct {
	SourceOrderNumber string            `json:"source_order_number"`
	Devices           []ReceivingDevice `json:"devices" validate:"required,min=1,dive"`
}

// ReceivingDevice is one device awaiting receipt
type ReceivingDevice struct {
	SerialNumber string `json:"serial_number" validate:"required"`
	Tag          string `json:"tag" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Category     string `json:"category" validate:"required"`
	Model        string `json:"model"`
	Datacenter   string `json:"datacenter"`
	Room         string `json:"room"`
}

// ReceivingBehavior registers newly arrived devices in the ledger
type ReceivingBehavior struct {
	validate *validator.Validate
}

func (b *ReceivingBehavior) ValidatePayload(payload []byte) error {
	var p ReceivingPayload
	if err := decodePayload(b.validate, payload, &p); err != nil {
		return err
	}
	seenSerial := make(map[string]struct{}, len(p.Devices))
	seenTag := make(map[string]struct{}, len(p.Devices))
	for _, d := range p.Devices {
		if _, dup := seenSerial[d.SerialNumber]; dup {
			return shared.NewDomainError("VALIDATION_ERROR",
				fmt.Sprintf("Duplicate serial number in payload: %s", d.SerialNumber))
		}
		seenSerial[d.SerialNumber] = struct{}{}
		if _, dup := seenTag[d.Tag]; dup {
			return shared.NewDomainError("VALIDATION_ERROR",
				fmt.Sprintf("Duplicate tag in payload: %s", d.Tag))
		}
		seenTag[d.Tag] = struct{}{}
	}
	return nil
}

// ExpandItems produces one item per device. AssetTag stays nil until the
// asset exists; the serial number identifies the device.
func (b *ReceivingBehavior) ExpandItems(targets []string, payload []byte) ([]ItemSpec, error) {
	if len(targets) > 0 {
		return nil, shared.NewDomainError("VALIDATION_ERROR", "Receiving work orders take devices in the payload, not targets")
	}
	var p ReceivingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	items := make([]ItemSpec, 0, len(p.Devices))
	for _, d := range p.Devices {
		data, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		items = append(items, ItemSpec{SerialNumber: d.SerialNumber, OperationData: string(data)})
	}
	return items, nil
}

// CheckPreconditions rejects devices already present in the ledger
func (b *ReceivingBehavior) CheckPreconditions(ctx context.Context, ledger asset.Reader, targets []string, payload []byte) error {
	var p ReceivingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	for _, d := range p.Devices {
		if _, err := ledger.FindBySerialNumber(ctx, d.SerialNumber); err == nil {
			return shared.NewDomainError("PRECONDITION_FAILED",
				fmt.Sprintf("Serial number already registered: %s", d.SerialNumber))
		} else if !shared.IsDomainError(err, "NOT_FOUND") {
			return err
		}
		if _, err := ledger.FindByTag(ctx, d.Tag); err == nil {
			return shared.NewDomainError("PRECONDITION_FAILED",
				fmt.Sprintf("Asset tag already registered: %s", d.Tag))
		} else if !shared.IsDomainError(err, "NOT_FOUND") {
			return err
		}
	}
	return nil
}

func (b *ReceivingBehavior) ItemEffect(item *WorkOrderItem, payload []byte) ([]Mutation, error) {
	var d ReceivingDevice
	if err := json.Unmarshal([]byte(item.OperationData), &d); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed item data: %v", err))
	}
	a, err := asset.NewAsset(d.Tag, d.SerialNumber, d.Name, d.Category)
	if err != nil {
		return nil, err
	}
	a.Model = d.Model
	a.Datacenter = d.Datacenter
	a.Room = d.Room
	if err := a.AdvanceStage(asset.StageReceived, ""); err != nil {
		return nil, err
	}
	return []Mutation{{Create: a}}, nil
}

func (b *ReceivingBehavior) ExclusiveTargets() bool { return false }

// RackingPayload places received assets into a cabinet
type RackingPayload struct {
	Datacenter     string `json:"datacenter" validate:"required"`
	Room           string `json:"room" validate:"required"`
	Cabinet        string `json:"cabinet" validate:"required"`
	UPositionStart int    `json:"u_position_start" validate:"required,min=1,max=52"`
	UPositionEnd   int    `json:"u_position_end" validate:"required,gtefield=UPositionStart,max=52"`
}

// RackingBehavior moves assets from received to racked. Racking the same
// asset from two work orders at once would fight over the same rack slots,
// so targets are exclusive.
type RackingBehavior struct {
	validate *validator.Validate
}

func (b *RackingBehavior) ValidatePayload(payload []byte) error {
	var p RackingPayload
	return decodePayload(b.validate, payload, &p)
}

func (b *RackingBehavior) ExpandItems(targets []string, payload []byte) ([]ItemSpec, error) {
	return oneItemPerTarget(targets)
}

func (b *RackingBehavior) CheckPreconditions(ctx context.Context, ledger asset.Reader, targets []string, payload []byte) error {
	return requireExisting(ctx, ledger, targets, func(a *asset.Asset) error {
		if a.LifecycleStage != asset.StageReceived {
			return shared.NewDomainError("PRECONDITION_FAILED",
				fmt.Sprintf("Asset %s is in stage %s, racking requires %s", a.Tag, a.LifecycleStage, asset.StageReceived))
		}
		if !a.Available {
			return shared.NewDomainError("PRECONDITION_FAILED",
				fmt.Sprintf("Asset %s is unavailable: %s", a.Tag, a.UnavailableReason))
		}
		return nil
	})
}

func (b *RackingBehavior) ItemEffect(item *WorkOrderItem, payload []byte) ([]Mutation, error) {
	var p RackingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	if item.AssetTag == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "Racking item has no target asset")
	}
	position := fmt.Sprintf("U%d-U%d", p.UPositionStart, p.UPositionEnd)
	return []Mutation{{
		Tag: *item.AssetTag,
		Apply: func(a *asset.Asset) error {
			a.Relocate(p.Datacenter, p.Room, p.Cabinet, position)
			return a.AdvanceStage(asset.StageRacked, "")
		},
	}}, nil
}

func (b *RackingBehavior) ExclusiveTargets() bool { return true }

const (
	PowerActionOn  = "power_on"
	PowerActionOff = "power_off"
)

// PowerManagementPayload powers assets on or off
type PowerManagementPayload struct {
	Action string `json:"action" validate:"required,oneof=power_on power_off"`
	Reason string `json:"reason"`
}

// PowerManagementBehavior flips asset availability alongside the power state
type PowerManagementBehavior struct {
	validate *validator.Validate
}

func (b *PowerManagementBehavior) ValidatePayload(payload []byte) error {
	var p PowerManagementPayload
	if err := decodePayload(b.validate, payload, &p); err != nil {
		return err
	}
	if p.Action == PowerActionOff && p.Reason == "" {
		return shared.NewDomainError("VALIDATION_ERROR", "Powering off requires a reason")
	}
	return nil
}

func (b *PowerManagementBehavior) ExpandItems(targets []string, payload []byte) ([]ItemSpec, error) {
	return oneItemPerTarget(targets)
}

func (b *PowerManagementBehavior) CheckPreconditions(ctx context.Context, ledger asset.Reader, targets []string, payload []byte) error {
	var p PowerManagementPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	return requireExisting(ctx, ledger, targets, func(a *asset.Asset) error {
		if a.IsDecommissioned() {
			return shared.NewDomainError("PRECONDITION_FAILED",
				fmt.Sprintf("Asset %s is decommissioned", a.Tag))
		}
		switch p.Action {
		case PowerActionOn:
			if a.LifecycleStage != asset.StageRacked && a.LifecycleStage != asset.StagePoweredOn && a.LifecycleStage != asset.StageRunning {
				return shared.NewDomainError("PRECONDITION_FAILED",
					fmt.Sprintf("Asset %s is in stage %s and cannot be powered on", a.Tag, a.LifecycleStage))
			}
		case PowerActionOff:
			if a.LifecycleStage != asset.StagePoweredOn && a.LifecycleStage != asset.StageRunning {
				return shared.NewDomainError("PRECONDITION_FAILED",
					fmt.Sprintf("Asset %s is in stage %s and cannot be powered off", a.Tag, a.LifecycleStage))
			}
		}
		return nil
	})
}

func (b *PowerManagementBehavior) ItemEffect(item *WorkOrderItem, payload []byte) ([]Mutation, error) {
	var p PowerManagementPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	if item.AssetTag == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "Power management item has no target asset")
	}
	return []Mutation{{
		Tag: *item.AssetTag,
		Apply: func(a *asset.Asset) error {
			switch p.Action {
			case PowerActionOn:
				if a.LifecycleStage == asset.StageRacked {
					if err := a.AdvanceStage(asset.StagePoweredOn, ""); err != nil {
						return err
					}
				}
				return a.SetAvailability(true, "")
			case PowerActionOff:
				// leave powered_on first, it only admits available assets
				if err := a.AdvanceStage(asset.StageRacked, p.Reason); err != nil {
					return err
				}
				return a.SetAvailability(false, p.Reason)
			}
			return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Unknown power action: %s", p.Action))
		},
	}}, nil
}

func (b *PowerManagementBehavior) ExclusiveTargets() bool { return false }

// ConfigurationPayload records configuration applied to assets
type ConfigurationPayload struct {
	Fields map[string]string `json:"fields" validate:"required,min=1"`
}

// ConfigurationBehavior merges configuration fields into asset attributes
type ConfigurationBehavior struct {
	validate *validator.Validate
}

func (b *ConfigurationBehavior) ValidatePayload(payload []byte) error {
	var p ConfigurationPayload
	if err := decodePayload(b.validate, payload, &p); err != nil {
		return err
	}
	for key := range p.Fields {
		if key == "" {
			return shared.NewDomainError("VALIDATION_ERROR", "Configuration field names cannot be empty")
		}
	}
	return nil
}

func (b *ConfigurationBehavior) ExpandItems(targets []string, payload []byte) ([]ItemSpec, error) {
	return oneItemPerTarget(targets)
}

func (b *ConfigurationBehavior) CheckPreconditions(ctx context.Context, ledger asset.Reader, targets []string, payload []byte) error {
	return requireExisting(ctx, ledger, targets, func(a *asset.Asset) error {
		if a.IsDecommissioned() {
			return shared.NewDomainError("PRECONDITION_FAILED",
				fmt.Sprintf("Asset %s is decommissioned", a.Tag))
		}
		return nil
	})
}

func (b *ConfigurationBehavior) ItemEffect(item *WorkOrderItem, payload []byte) ([]Mutation, error) {
	var p ConfigurationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	if item.AssetTag == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "Configuration item has no target asset")
	}
	return []Mutation{{
		Tag: *item.AssetTag,
		Apply: func(a *asset.Asset) error {
			return a.MergeAttributes(p.Fields)
		},
	}}, nil
}

func (b *ConfigurationBehavior) ExclusiveTargets() bool { return false }

// NetworkCablePayload replaces a network cable on a port
type NetworkCablePayload struct {
	Port            string `json:"port" validate:"required"`
	CableType       string `json:"cable_type" validate:"required,oneof=ethernet fiber"`
	NewCableSerial  string `json:"new_cable_serial"`
	ReplacementNote string `json:"replacement_note"`
}

// NetworkCableBehavior records cable replacements in the asset attributes
type NetworkCableBehavior struct {
	validate *validator.Validate
}

func (b *NetworkCableBehavior) ValidatePayload(payload []byte) error {
	var p NetworkCablePayload
	return decodePayload(b.validate, payload, &p)
}

func (b *NetworkCableBehavior) ExpandItems(targets []string, payload []byte) ([]ItemSpec, error) {
	return oneItemPerTarget(targets)
}

func (b *NetworkCableBehavior) CheckPreconditions(ctx context.Context, ledger asset.Reader, targets []string, payload []byte) error {
	return requireExisting(ctx, ledger, targets, func(a *asset.Asset) error {
		if a.IsDecommissioned() {
			return shared.NewDomainError("PRECONDITION_FAILED",
				fmt.Sprintf("Asset %s is decommissioned", a.Tag))
		}
		if a.LifecycleStage == asset.StageRegistered || a.LifecycleStage == asset.StageReceived {
			return shared.NewDomainError("PRECONDITION_FAILED",
				fmt.Sprintf("Asset %s is not racked yet", a.Tag))
		}
		return nil
	})
}

func (b *NetworkCableBehavior) ItemEffect(item *WorkOrderItem, payload []byte) ([]Mutation, error) {
	var p NetworkCablePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	if item.AssetTag == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "Network cable item has no target asset")
	}
	value := p.CableType
	if p.NewCableSerial != "" {
		value = fmt.Sprintf("%s:%s", p.CableType, p.NewCableSerial)
	}
	return []Mutation{{
		Tag: *item.AssetTag,
		Apply: func(a *asset.Asset) error {
			return a.MergeAttributes(map[string]string{"cable_" + p.Port: value})
		},
	}}, nil
}

func (b *NetworkCableBehavior) ExclusiveTargets() bool { return false }

const (
	FaultActionMarkFaulty   = "mark_faulty"
	FaultActionRestore      = "restore"
	FaultActionDecommission = "decommission"
)

// FaultHandlingPayload marks assets faulty, restores them, or retires them
type FaultHandlingPayload struct {
	Action      string `json:"action" validate:"required,oneof=mark_faulty restore decommission"`
	Description string `json:"description" validate:"required"`
}

// FaultHandlingBehavior drives the availability and decommission paths
type FaultHandlingBehavior struct {
	validate *validator.Validate
}

func (b *FaultHandlingBehavior) ValidatePayload(payload []byte) error {
	var p FaultHandlingPayload
	return decodePayload(b.validate, payload, &p)
}

func (b *FaultHandlingBehavior) ExpandItems(targets []string, payload []byte) ([]ItemSpec, error) {
	return oneItemPerTarget(targets)
}

func (b *FaultHandlingBehavior) CheckPreconditions(ctx context.Context, ledger asset.Reader, targets []string, payload []byte) error {
	var p FaultHandlingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	return requireExisting(ctx, ledger, targets, func(a *asset.Asset) error {
		if a.IsDecommissioned() {
			return shared.NewDomainError("PRECONDITION_FAILED",
				fmt.Sprintf("Asset %s is decommissioned", a.Tag))
		}
		switch p.Action {
		case FaultActionMarkFaulty:
			if !a.Available {
				return shared.NewDomainError("PRECONDITION_FAILED",
					fmt.Sprintf("Asset %s is already unavailable: %s", a.Tag, a.UnavailableReason))
			}
		case FaultActionRestore:
			if a.Available {
				return shared.NewDomainError("PRECONDITION_FAILED",
					fmt.Sprintf("Asset %s is not marked faulty", a.Tag))
			}
		}
		return nil
	})
}

func (b *FaultHandlingBehavior) ItemEffect(item *WorkOrderItem, payload []byte) ([]Mutation, error) {
	var p FaultHandlingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	if item.AssetTag == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "Fault handling item has no target asset")
	}
	return []Mutation{{
		Tag: *item.AssetTag,
		Apply: func(a *asset.Asset) error {
			switch p.Action {
			case FaultActionMarkFaulty:
				// maintenance forces unavailable and records the fault
				return a.AdvanceStage(asset.StageMaintenance, p.Description)
			case FaultActionRestore:
				if a.LifecycleStage == asset.StageMaintenance {
					if err := a.AdvanceStage(asset.StageRacked, ""); err != nil {
						return err
					}
				}
				return a.SetAvailability(true, "")
			case FaultActionDecommission:
				return a.AdvanceStage(asset.StageDecommissioned, p.Description)
			}
			return shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Unknown fault action: %s", p.Action))
		},
	}}, nil
}

func (b *FaultHandlingBehavior) ExclusiveTargets() bool { return false }

// GenericOperationPayload covers ad-hoc maintenance that the structured
// types do not model. It records what was done without mutating the ledger.
type GenericOperationPayload struct {
	Summary string            `json:"summary" validate:"required"`
	Detail  map[string]string `json:"detail"`
}

// GenericOperationBehavior is the catch-all type
type GenericOperationBehavior struct {
	validate *validator.Validate
}

func (b *GenericOperationBehavior) ValidatePayload(payload []byte) error {
	var p GenericOperationPayload
	return decodePayload(b.validate, payload, &p)
}

func (b *GenericOperationBehavior) ExpandItems(targets []string, payload []byte) ([]ItemSpec, error) {
	return oneItemPerTarget(targets)
}

func (b *GenericOperationBehavior) CheckPreconditions(ctx context.Context, ledger asset.Reader, targets []string, payload []byte) error {
	return requireExisting(ctx, ledger, targets, nil)
}

// ItemEffect records the operation against the asset attributes so the
// ledger shows the last ad-hoc touch
func (b *GenericOperationBehavior) ItemEffect(item *WorkOrderItem, payload []byte) ([]Mutation, error) {
	var p GenericOperationPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, shared.NewDomainError("VALIDATION_ERROR", fmt.Sprintf("Malformed payload: %v", err))
	}
	if item.AssetTag == nil {
		return nil, shared.NewDomainError("INVALID_STATE", "Generic operation item has no target asset")
	}
	return []Mutation{{
		Tag: *item.AssetTag,
		Apply: func(a *asset.Asset) error {
			return a.MergeAttributes(map[string]string{"last_operation": p.Summary})
		},
	}}, nil
}

func (b *GenericOperationBehavior) ExclusiveTargets() bool { return false }
