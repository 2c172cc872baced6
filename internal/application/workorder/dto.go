package workorder

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dcasset/backend/internal/domain/shared"
	"github.com/dcasset/backend/internal/domain/workorder"
)

// CreateWorkOrderRequest carries everything needed to open a work order
type CreateWorkOrderRequest struct {
	Type        string          `json:"type" binding:"required"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Creator     string          `json:"creator" binding:"required"`
	Assignee    string          `json:"assignee"`
	Reviewer    string          `json:"reviewer"`
	Targets     []string        `json:"targets"`
	Payload     json.RawMessage `json:"payload"`
}

// ExecuteWorkOrderRequest starts execution of a created work order
type ExecuteWorkOrderRequest struct {
	Operator string `json:"operator" binding:"required"`
}

// CompleteWorkOrderRequest settles an executing work order
type CompleteWorkOrderRequest struct {
	Operator string `json:"operator" binding:"required"`
}

// CancelWorkOrderRequest cancels a work order before it settles
type CancelWorkOrderRequest struct {
	Operator string `json:"operator" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// WorkOrderListFilter narrows the work order listing
type WorkOrderListFilter struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
	Type     string `form:"type"`
	Creator  string `form:"creator"`
	Search   string `form:"search"`
}

// WorkOrderItemResponse is the API shape of one item
type WorkOrderItemResponse struct {
	ID           uuid.UUID  `json:"id"`
	AssetTag     *string    `json:"asset_tag,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Status       string     `json:"status"`
	ErrorCode    string     `json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
}

// WorkOrderResponse is the API shape of a work order
type WorkOrderResponse struct {
	ID           uuid.UUID               `json:"id"`
	Number       string                  `json:"number"`
	Type         string                  `json:"type"`
	Status       string                  `json:"status"`
	Title        string                  `json:"title,omitempty"`
	Description  string                  `json:"description,omitempty"`
	Creator      string                  `json:"creator"`
	Operator     string                  `json:"operator,omitempty"`
	Assignee     string                  `json:"assignee,omitempty"`
	Reviewer     string                  `json:"reviewer,omitempty"`
	Payload      json.RawMessage         `json:"payload,omitempty"`
	CancelReason string                  `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	ExecutedAt   *time.Time              `json:"executed_at,omitempty"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
	CancelledAt  *time.Time              `json:"cancelled_at,omitempty"`
	Items        []WorkOrderItemResponse `json:"items"`
}

// ToWorkOrderResponse converts the aggregate to its API shape
func ToWorkOrderResponse(wo *workorder.WorkOrder) WorkOrderResponse {
	items := make([]WorkOrderItemResponse, 0, len(wo.Items))
	for _, item := range wo.Items {
		items = append(items, WorkOrderItemResponse{
			ID:           item.ID,
			AssetTag:     item.AssetTag,
			SerialNumber: item.SerialNumber,
			Status:       string(item.Status),
			ErrorCode:    item.ErrorCode,
			ErrorMessage: item.ErrorMessage,
			SettledAt:    item.SettledAt,
		})
	}

	var payload json.RawMessage
	if wo.Payload != "" {
		payload = json.RawMessage(wo.Payload)
	}

	return WorkOrderResponse{
		ID:           wo.ID,
		Number:       wo.Number,
		Type:         wo.Type,
		Status:       string(wo.Status),
		Title:        wo.Title,
		Description:  wo.Description,
		Creator:      wo.Creator,
		Operator:     wo.Operator,
		Assignee:     wo.Assignee,
		Reviewer:     wo.Reviewer,
		Payload:      payload,
		CancelReason: wo.CancelReason,
		CreatedAt:    wo.CreatedAt,
		ExecutedAt:   wo.ExecutedAt,
		CompletedAt:  wo.CompletedAt,
		CancelledAt:  wo.CancelledAt,
		Items:        items,
	}
}

// toSharedFilter maps the list filter onto the repository filter
func (f WorkOrderListFilter) toSharedFilter() shared.Filter {
	filter := shared.DefaultFilter()
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	filter.Search = f.Search
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	if f.Type != "" {
		filter.Filters["type"] = f.Type
	}
	if f.Creator != "" {
		filter.Filters["creator"] = f.Creator
	}
	return filter
}
