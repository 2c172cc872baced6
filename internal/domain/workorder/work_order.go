package workorder

import (
	"fmt"
	"strings"
	"time"

	"github.com/dcasset/backend/internal/domain/shared"
)

// Status represents the lifecycle state of a work order
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusExecuting Status = "EXECUTING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// IsValid checks if the status is a known status
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusExecuting, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if no transition leaves this status
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanTransitionTo reports whether the transition s -> next is defined.
// FAILED is reached only through the completion path when every item failed.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusCreated:
		return next == StatusExecuting || next == StatusCancelled
	case StatusExecuting:
		return next == StatusCompleted || next == StatusFailed ||
			next == StatusCancelled || next == StatusCreated
	}
	return false
}

// WorkOrder represents one unit of intended change to one or more assets.
// It is the aggregate root for the work-order lifecycle; the type-specific
// payload is opaque here and interpreted only by the registered TypeBehavior.
type WorkOrder struct {
	shared.BaseAggregateRoot
	Number      string `gorm:"size:100;not null;uniqueIndex"`
	Type        string `gorm:"size:50;not null;index"`
	Status      Status `gorm:"size:20;not null;default:'CREATED';index"`
	Title       string `gorm:"size:200"`
	Description string `gorm:"type:text"`

	Creator  string `gorm:"size:100;not null;index"`
	Operator string `gorm:"size:100"`
	Assignee string `gorm:"size:100"`
	Reviewer string `gorm:"size:100"`

	// Type-specific payload, serialized JSON
	Payload string `gorm:"type:text"`

	CancelReason string     `gorm:"type:text"`
	ExecutedAt   *time.Time `gorm:"index"`
	CompletedAt  *time.Time
	CancelledAt  *time.Time

	Items []WorkOrderItem `gorm:"foreignKey:WorkOrderID;references:ID"`
}

// TableName returns the table name for GORM
func (WorkOrder) TableName() string {
	return "work_orders"
}

// NewWorkOrder creates a new work order in status CREATED. The items are the
// per-target (or per-device, for receiving) rows produced by the type's
// behavior; at least one is required.
func NewWorkOrder(number, typeTag, title, description, creator string, payload []byte, items []WorkOrderItem) (*WorkOrder, error) {
	if number == "" {
		return nil, shared.NewDomainError("INVALID_NUMBER", "Work order number cannot be empty")
	}
	if typeTag == "" {
		return nil, shared.NewDomainError("INVALID_TYPE", "Work order type cannot be empty")
	}
	if creator == "" {
		return nil, shared.NewDomainError("INVALID_CREATOR", "Work order creator cannot be empty")
	}
	if len(items) == 0 {
		return nil, shared.NewDomainError("INVALID_ITEMS", "Work order must have at least one item")
	}

	wo := &WorkOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		Type:              typeTag,
		Status:            StatusCreated,
		Title:             title,
		Description:       description,
		Creator:           creator,
		Payload:           string(payload),
	}
	for i := range items {
		items[i].WorkOrderID = wo.ID
		items[i].Status = ItemStatusPending
	}
	wo.Items = items

	wo.AddDomainEvent(NewWorkOrderCreatedEvent(wo, creator))
	return wo, nil
}

// TargetTags returns the distinct asset tags referenced by the items.
// Items without an asset reference (not-yet-existing assets awaiting
// receipt) are skipped.
func (w *WorkOrder) TargetTags() []string {
	seen := make(map[string]struct{}, len(w.Items))
	tags := make([]string, 0, len(w.Items))
	for _, item := range w.Items {
		if item.AssetTag == nil || *item.AssetTag == "" {
			continue
		}
		if _, ok := seen[*item.AssetTag]; ok {
			continue
		}
		seen[*item.AssetTag] = struct{}{}
		tags = append(tags, *item.AssetTag)
	}
	return tags
}

// BeginExecution transitions CREATED -> EXECUTING
func (w *WorkOrder) BeginExecution(operator string) error {
	if !w.Status.CanTransitionTo(StatusExecuting) {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("Cannot execute work order in status %s", w.Status))
	}

	now := time.Now()
	w.Status = StatusExecuting
	w.Operator = operator
	w.ExecutedAt = &now
	w.UpdatedAt = now
	w.IncrementVersion()

	w.AddDomainEvent(NewWorkOrderExecutedEvent(w, operator))
	return nil
}

// RevertToCreated rolls an EXECUTING work order back to CREATED. Used when
// the precondition re-check at execution time no longer holds.
func (w *WorkOrder) RevertToCreated() error {
	if w.Status != StatusExecuting {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("Cannot revert work order in status %s", w.Status))
	}

	w.Status = StatusCreated
	w.ExecutedAt = nil
	w.UpdatedAt = time.Now()
	w.IncrementVersion()
	return nil
}

// FinishCompletion settles the work order from its item outcomes. The work
// order lands in COMPLETED when at least one item succeeded and in FAILED
// when every item failed; a partially-successful completion is COMPLETED
// with the failed items carrying their own error detail.
func (w *WorkOrder) FinishCompletion(operator string) error {
	if w.Status != StatusExecuting {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("Cannot complete work order in status %s", w.Status))
	}

	succeeded := 0
	for _, item := range w.Items {
		if item.Status == ItemStatusSucceeded {
			succeeded++
		}
	}

	next := StatusCompleted
	if succeeded == 0 {
		next = StatusFailed
	}

	now := time.Now()
	w.Status = next
	w.Operator = operator
	w.CompletedAt = &now
	w.UpdatedAt = now
	w.IncrementVersion()

	w.AddDomainEvent(NewWorkOrderCompletedEvent(w, operator, succeeded, len(w.Items)-succeeded))
	return nil
}

// Cancel transitions CREATED or EXECUTING to CANCELLED without applying any
// effects. A reason is required.
func (w *WorkOrder) Cancel(operator, reason string) error {
	if !w.Status.CanTransitionTo(StatusCancelled) {
		return shared.NewDomainError("INVALID_TRANSITION",
			fmt.Sprintf("Cannot cancel work order in status %s", w.Status))
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancellation requires a reason")
	}

	now := time.Now()
	w.Status = StatusCancelled
	w.Operator = operator
	w.CancelReason = reason
	w.CancelledAt = &now
	w.UpdatedAt = now
	w.IncrementVersion()

	w.AddDomainEvent(NewWorkOrderCancelledEvent(w, operator, reason))
	return nil
}

// SucceededItems returns the items that applied their ledger effect
func (w *WorkOrder) SucceededItems() []WorkOrderItem {
	out := make([]WorkOrderItem, 0, len(w.Items))
	for _, item := range w.Items {
		if item.Status == ItemStatusSucceeded {
			out = append(out, item)
		}
	}
	return out
}

// FailedItems returns the items whose effect could not be applied
func (w *WorkOrder) FailedItems() []WorkOrderItem {
	out := make([]WorkOrderItem, 0, len(w.Items))
	for _, item := range w.Items {
		if item.Status == ItemStatusFailed {
			out = append(out, item)
		}
	}
	return out
}
