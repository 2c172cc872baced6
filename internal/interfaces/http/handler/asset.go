package handler

import (
	"github.com/gin-gonic/gin"

	assetapp "github.com/dcasset/backend/internal/application/asset"
)

// AssetHandler serves read-only ledger endpoints. Ledger writes happen
// through work orders and batch imports only, never directly over HTTP.
type AssetHandler struct {
	BaseHandler
	ledger *assetapp.LedgerQueryService
}

// NewAssetHandler creates a new AssetHandler
func NewAssetHandler(ledger *assetapp.LedgerQueryService) *AssetHandler {
	return &AssetHandler{ledger: ledger}
}

// List returns a paginated listing of ledger records
func (h *AssetHandler) List(c *gin.Context) {
	var filter assetapp.AssetListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.ledger.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// GetByTag returns one ledger record by asset tag
func (h *AssetHandler) GetByTag(c *gin.Context) {
	tag := c.Param("tag")
	if tag == "" {
		h.BadRequest(c, "asset tag is required")
		return
	}

	a, err := h.ledger.GetByTag(c.Request.Context(), tag)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, a)
}

// GetBySerialNumber returns one ledger record by serial number
func (h *AssetHandler) GetBySerialNumber(c *gin.Context) {
	serial := c.Query("serial_number")
	if serial == "" {
		h.BadRequest(c, "serial_number is required")
		return
	}

	a, err := h.ledger.GetBySerialNumber(c.Request.Context(), serial)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, a)
}
