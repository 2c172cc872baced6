package workorder

import (
	"github.com/dcasset/backend/internal/domain/shared"
)

const (
	EventWorkOrderCreated   = "workorder.created"
	EventWorkOrderExecuted  = "workorder.executed"
	EventWorkOrderCompleted = "workorder.completed"
	EventWorkOrderCancelled = "workorder.cancelled"
)

// WorkOrderCreatedEvent is emitted when a work order enters the lifecycle
type WorkOrderCreatedEvent struct {
	shared.BaseDomainEvent
	Number    string   `json:"number"`
	Type      string   `json:"type"`
	AssetTags []string `json:"asset_tags"`
	Actor     string   `json:"actor"`
}

// NewWorkOrderCreatedEvent creates a work order created event
func NewWorkOrderCreatedEvent(wo *WorkOrder, actor string) *WorkOrderCreatedEvent {
	return &WorkOrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventWorkOrderCreated, "WorkOrder", wo.ID),
		Number:          wo.Number,
		Type:            wo.Type,
		AssetTags:       wo.TargetTags(),
		Actor:           actor,
	}
}

// WorkOrderExecutedEvent is emitted when execution of the effects begins
type WorkOrderExecutedEvent struct {
	shared.BaseDomainEvent
	Number    string   `json:"number"`
	Type      string   `json:"type"`
	AssetTags []string `json:"asset_tags"`
	Actor     string   `json:"actor"`
}

// NewWorkOrderExecutedEvent creates a work order executed event
func NewWorkOrderExecutedEvent(wo *WorkOrder, actor string) *WorkOrderExecutedEvent {
	return &WorkOrderExecutedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventWorkOrderExecuted, "WorkOrder", wo.ID),
		Number:          wo.Number,
		Type:            wo.Type,
		AssetTags:       wo.TargetTags(),
		Actor:           actor,
	}
}

// WorkOrderCompletedEvent is emitted when the work order settles, whether it
// landed in COMPLETED or FAILED
type WorkOrderCompletedEvent struct {
	shared.BaseDomainEvent
	Number    string   `json:"number"`
	Type      string   `json:"type"`
	Status    Status   `json:"status"`
	AssetTags []string `json:"asset_tags"`
	Actor     string   `json:"actor"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
}

// NewWorkOrderCompletedEvent creates a work order completed event
func NewWorkOrderCompletedEvent(wo *WorkOrder, actor string, succeeded, failed int) *WorkOrderCompletedEvent {
	return &WorkOrderCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventWorkOrderCompleted, "WorkOrder", wo.ID),
		Number:          wo.Number,
		Type:            wo.Type,
		Status:          wo.Status,
		AssetTags:       wo.TargetTags(),
		Actor:           actor,
		Succeeded:       succeeded,
		Failed:          failed,
	}
}

// WorkOrderCancelledEvent is emitted when a work order is cancelled
type WorkOrderCancelledEvent struct {
	shared.BaseDomainEvent
	Number    string   `json:"number"`
	Type      string   `json:"type"`
	AssetTags []string `json:"asset_tags"`
	Actor     string   `json:"actor"`
	Reason    string   `json:"reason"`
}

// NewWorkOrderCancelledEvent creates a work order cancelled event
func NewWorkOrderCancelledEvent(wo *WorkOrder, actor, reason string) *WorkOrderCancelledEvent {
	return &WorkOrderCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventWorkOrderCancelled, "WorkOrder", wo.ID),
		Number:          wo.Number,
		Type:            wo.Type,
		AssetTags:       wo.TargetTags(),
		Actor:           actor,
		Reason:          reason,
	}
}
