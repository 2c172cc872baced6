package workorder

import (
	"time"

	"github.com/google/uuid"

	"github.com/dcasset/backend/internal/domain/shared"
)

// ItemStatus represents the outcome of a single work order item
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "PENDING"
	ItemStatusSucceeded ItemStatus = "SUCCEEDED"
	ItemStatusFailed    ItemStatus = "FAILED"
)

// WorkOrderItem is one target-level row of a work order. AssetTag is nil for
// items whose asset does not exist yet (devices awaiting receipt); for those
// the serial number identifies the device.
type WorkOrderItem struct {
	shared.BaseEntity
	WorkOrderID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	AssetTag     *string    `gorm:"size:100;index"`
	SerialNumber string     `gorm:"size:100;index"`
	Status       ItemStatus `gorm:"size:20;not null;default:'PENDING'"`

	// Item-level slice of the payload, serialized JSON
	OperationData string `gorm:"type:text"`

	ErrorCode    string `gorm:"size:50"`
	ErrorMessage string `gorm:"type:text"`
	SettledAt    *time.Time
}

// TableName returns the table name for GORM
func (WorkOrderItem) TableName() string {
	return "work_order_items"
}

// MarkSucceeded records a successfully applied effect
func (i *WorkOrderItem) MarkSucceeded() {
	now := time.Now()
	i.Status = ItemStatusSucceeded
	i.ErrorCode = ""
	i.ErrorMessage = ""
	i.SettledAt = &now
	i.UpdatedAt = now
}

// MarkFailed records the failure without affecting sibling items
func (i *WorkOrderItem) MarkFailed(err error) {
	now := time.Now()
	i.Status = ItemStatusFailed
	i.SettledAt = &now
	i.UpdatedAt = now

	if domainErr, ok := err.(*shared.DomainError); ok {
		i.ErrorCode = domainErr.Code
		i.ErrorMessage = domainErr.Message
		return
	}
	i.ErrorCode = "EFFECT_FAILED"
	if err != nil {
		i.ErrorMessage = err.Error()
	}
}

// ResetPending clears a previous outcome so the item can be retried
func (i *WorkOrderItem) ResetPending() {
	i.Status = ItemStatusPending
	i.ErrorCode = ""
	i.ErrorMessage = ""
	i.SettledAt = nil
	i.UpdatedAt = time.Now()
}
