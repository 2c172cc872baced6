package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	batchapp "github.com/dcasset/backend/internal/application/batch"
	"github.com/dcasset/backend/internal/interfaces/http/dto"
)

// csvContentTypes lists upload content types accepted as CSV. Browsers and
// CLI clients disagree on what a .csv is.
var csvContentTypes = map[string]bool{
	"text/csv":                 true,
	"text/plain":               true,
	"application/octet-stream": true,
	"application/vnd.ms-excel": true,
}

// BatchImportHandler handles bulk asset import endpoints
type BatchImportHandler struct {
	BaseHandler
	imports     *batchapp.ImportService
	maxFileSize int64
}

// NewBatchImportHandler creates a new BatchImportHandler
func NewBatchImportHandler(imports *batchapp.ImportService, maxFileSize int64) *BatchImportHandler {
	return &BatchImportHandler{imports: imports, maxFileSize: maxFileSize}
}

// Upload accepts a CSV file and runs the import pipeline synchronously,
// returning the settled job with per-row outcomes
func (h *BatchImportHandler) Upload(c *gin.Context) {
	importedBy := c.PostForm("imported_by")
	if importedBy == "" {
		h.BadRequest(c, "imported_by is required")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	if header.Size > h.maxFileSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge,
			fmt.Sprintf("file exceeds maximum size of %d bytes", h.maxFileSize))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && !csvContentTypes[contentType] {
		h.Error(c, http.StatusUnsupportedMediaType, dto.ErrCodeUnsupportedMedia, "file must be a CSV file")
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, h.maxFileSize+1))
	if err != nil {
		h.InternalError(c, "failed to read uploaded file")
		return
	}
	if int64(len(content)) > h.maxFileSize {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge,
			fmt.Sprintf("file exceeds maximum size of %d bytes", h.maxFileSize))
		return
	}

	job, err := h.imports.Import(c.Request.Context(), batchapp.ImportRequest{
		FileName:   header.Filename,
		ImportedBy: importedBy,
		Content:    content,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, job)
}

// GetByID returns one batch job with its row outcomes
func (h *BatchImportHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	job, err := h.imports.GetByID(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, job)
}

// List returns a paginated batch job listing
func (h *BatchImportHandler) List(c *gin.Context) {
	var filter batchapp.BatchJobListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	page, err := h.imports.List(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// DownloadReport streams the regenerated error-report CSV for a job
func (h *BatchImportHandler) DownloadReport(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	fileName, content, err := h.imports.ErrorReport(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	c.Data(http.StatusOK, "text/csv", content)
}

func (h *BatchImportHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid batch job ID format")
		return uuid.Nil, false
	}
	return id, true
}
