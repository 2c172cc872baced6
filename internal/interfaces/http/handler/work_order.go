package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	workorderapp "github.com/dcasset/backend/internal/application/workorder"
)

// WorkOrderHandler handles work-order lifecycle endpoints
type WorkOrderHandler struct {
	BaseHandler
	workOrders *workorderapp.WorkOrderService
}

// NewWorkOrderHandler creates a new WorkOrderHandler
func NewWorkOrderHandler(workOrders *workorderapp.WorkOrderService) *WorkOrderHandler {
	return &WorkOrderHandler{workOrders: workOrders}
}

// Create opens a new work order in CREATED state
func (h *WorkOrderHandler) Create(c *gin.Context) {
	var req workorderapp.CreateWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	wo, err := h.workOrders.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, wo)
}

// Execute moves a created work order into EXECUTING
func (h *WorkOrderHandler) Execute(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req workorderapp.ExecuteWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	wo, err := h.workOrders.Execute(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, wo)
}

// Complete settles an executing work order, applying its ledger effects
func (h *WorkOrderHandler) Complete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req workorderapp.CompleteWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	wo, err := h.workOrders.Complete(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, wo)
}

// Cancel cancels a work order that has not settled yet
func (h *WorkOrderHandler) Cancel(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req workorderapp.CancelWorkOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	wo, err := h.workOrders.Cancel(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, wo)
}

// GetByID returns one work order with its items
func (h *WorkOrderHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	wo, err := h.workOrders.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, wo)
}

// GetByNumber returns one work order by its business number
func (h *WorkOrderHandler) GetByNumber(c *gin.Context) {
	number := c.Param("number")
	if number == "" {
		h.BadRequest(c, "work order number is required")
		return
	}

	wo, err := h.workOrders.GetByNumber(c.Request.Context(), number)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, wo)
}

// List returns a paginated work-order listing
func (h *WorkOrderHandler) List(c *gin.Context) {
	var filter workorderapp.WorkOrderListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.workOrders.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Types returns the registered work-order type tags
func (h *WorkOrderHandler) Types(c *gin.Context) {
	h.Success(c, h.workOrders.Types())
}

func (h *WorkOrderHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid work order ID format")
		return uuid.Nil, false
	}
	return id, true
}
