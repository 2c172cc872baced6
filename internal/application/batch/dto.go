package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/dcasset/backend/internal/domain/batch"
	"github.com/dcasset/backend/internal/domain/shared"
)

// ImportRequest carries one uploaded asset file
type ImportRequest struct {
	FileName   string
	ImportedBy string
	Content    []byte
}

// BatchJobResponse is the API shape of a batch import job
type BatchJobResponse struct {
	ID           uuid.UUID                `json:"id"`
	FileName     string                   `json:"file_name"`
	ImportedBy   string                   `json:"imported_by"`
	Status       string                   `json:"status"`
	TotalRows    int                      `json:"total_rows"`
	SuccessRows  int                      `json:"success_rows"`
	ErrorRows    int                      `json:"error_rows"`
	SuccessRate  float64                  `json:"success_rate"`
	RowErrors    []batch.RowErrorDetail   `json:"row_errors,omitempty"`
	RowSuccesses []batch.RowSuccessDetail `json:"row_successes,omitempty"`
	ReportKey    string                   `json:"report_key,omitempty"`
	AbortReason  string                   `json:"abort_reason,omitempty"`
	StartedAt    time.Time                `json:"started_at"`
	CompletedAt  *time.Time               `json:"completed_at,omitempty"`
}

// ToBatchJobResponse converts the aggregate to its API shape. Unparseable
// stored row outcomes degrade to an empty list rather than failing the read.
func ToBatchJobResponse(job *batch.BatchJob) BatchJobResponse {
	rowErrors, err := job.RowErrors()
	if err != nil {
		rowErrors = []batch.RowErrorDetail{}
	}
	rowSuccesses, err := job.RowSuccesses()
	if err != nil {
		rowSuccesses = []batch.RowSuccessDetail{}
	}
	return BatchJobResponse{
		ID:           job.ID,
		FileName:     job.FileName,
		ImportedBy:   job.ImportedBy,
		Status:       string(job.Status),
		TotalRows:    job.TotalRows,
		SuccessRows:  job.SuccessRows,
		ErrorRows:    job.ErrorRows,
		SuccessRate:  job.SuccessRate(),
		RowErrors:    rowErrors,
		RowSuccesses: rowSuccesses,
		ReportKey:    job.ReportKey,
		AbortReason:  job.AbortReason,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
	}
}

// BatchJobListFilter narrows the job listing
type BatchJobListFilter struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
}

func (f BatchJobListFilter) toSharedFilter() shared.Filter {
	filter := shared.DefaultFilter()
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	if f.Status != "" {
		filter.Filters["status"] = f.Status
	}
	return filter
}
