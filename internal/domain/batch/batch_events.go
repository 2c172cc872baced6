package batch

import (
	"github.com/dcasset/backend/internal/domain/shared"
)

const (
	EventBatchJobStarted = "batch.job_started"
	EventBatchJobSettled = "batch.job_settled"
)

// BatchJobStartedEvent is emitted when a bulk import begins
type BatchJobStartedEvent struct {
	shared.BaseDomainEvent
	FileName   string `json:"file_name"`
	ImportedBy string `json:"imported_by"`
}

// NewBatchJobStartedEvent creates a batch job started event
func NewBatchJobStartedEvent(job *BatchJob) *BatchJobStartedEvent {
	return &BatchJobStartedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBatchJobStarted, "BatchJob", job.ID),
		FileName:        job.FileName,
		ImportedBy:      job.ImportedBy,
	}
}

// BatchJobSettledEvent is emitted when the job reaches a terminal status
type BatchJobSettledEvent struct {
	shared.BaseDomainEvent
	FileName    string    `json:"file_name"`
	ImportedBy  string    `json:"imported_by"`
	Status      JobStatus `json:"status"`
	TotalRows   int       `json:"total_rows"`
	SuccessRows int       `json:"success_rows"`
	ErrorRows   int       `json:"error_rows"`
	ReportKey   string    `json:"report_key,omitempty"`
}

// NewBatchJobSettledEvent creates a batch job settled event
func NewBatchJobSettledEvent(job *BatchJob) *BatchJobSettledEvent {
	return &BatchJobSettledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventBatchJobSettled, "BatchJob", job.ID),
		FileName:        job.FileName,
		ImportedBy:      job.ImportedBy,
		Status:          job.Status,
		TotalRows:       job.TotalRows,
		SuccessRows:     job.SuccessRows,
		ErrorRows:       job.ErrorRows,
		ReportKey:       job.ReportKey,
	}
}
