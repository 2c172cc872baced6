package batch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dcasset/backend/internal/domain/shared"
)

// JobStatus represents the status of a batch import job
type JobStatus string

const (
	JobStatusInProgress          JobStatus = "in_progress"
	JobStatusCompleted           JobStatus = "completed"
	JobStatusCompletedWithErrors JobStatus = "completed_with_errors"
	JobStatusAborted             JobStatus = "aborted"
)

// IsValid checks if the status is a known status
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusInProgress, JobStatusCompleted, JobStatusCompletedWithErrors, JobStatusAborted:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s JobStatus) IsTerminal() bool {
	return s != JobStatusInProgress
}

// RowErrorDetail records why one input row was rejected. Row is 1-based and
// counts data rows, not the header. Values carries the rejected row as it
// appeared in the input, keyed by column, so the caller can correct and
// re-submit exactly those rows; rows too malformed to parse leave it empty.
type RowErrorDetail struct {
	Row          int               `json:"row"`
	SerialNumber string            `json:"serial_number,omitempty"`
	Code         string            `json:"code"`
	Message      string            `json:"message"`
	Values       map[string]string `json:"values,omitempty"`
}

// RowSuccessDetail records one imported row and the asset it produced
type RowSuccessDetail struct {
	Row          int    `json:"row"`
	SerialNumber string `json:"serial_number"`
	AssetTag     string `json:"asset_tag"`
}

// BatchJob tracks one bulk asset import from file receipt to settlement.
// Row errors never abort the job; only infrastructure failure does.
type BatchJob struct {
	shared.BaseAggregateRoot
	FileName    string    `gorm:"size:255;not null"`
	FileSize    int64     `gorm:"not null;default:0"`
	ImportedBy  string    `gorm:"size:100;not null;index"`
	Status      JobStatus `gorm:"size:30;not null;default:'in_progress';index"`
	TotalRows   int       `gorm:"not null;default:0"`
	SuccessRows int       `gorm:"not null;default:0"`
	ErrorRows   int       `gorm:"not null;default:0"`

	// Serialized []RowErrorDetail
	ErrorDetails string `gorm:"type:text"`

	// Serialized []RowSuccessDetail
	SuccessDetails string `gorm:"type:text"`

	// Object key of the generated error report, empty when no rows failed
	ReportKey string `gorm:"size:500"`

	AbortReason string `gorm:"type:text"`
	StartedAt   time.Time
	CompletedAt *time.Time
}

// TableName returns the table name for GORM
func (BatchJob) TableName() string {
	return "batch_import_jobs"
}

// NewBatchJob creates a job in in_progress
func NewBatchJob(fileName string, fileSize int64, importedBy string) (*BatchJob, error) {
	if fileName == "" {
		return nil, shared.NewDomainError("INVALID_FILE_NAME", "File name cannot be empty")
	}
	if fileSize < 0 {
		return nil, shared.NewDomainError("INVALID_FILE_SIZE", "File size cannot be negative")
	}
	if importedBy == "" {
		return nil, shared.NewDomainError("INVALID_IMPORTER", "Importer cannot be empty")
	}

	job := &BatchJob{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		FileName:          fileName,
		FileSize:          fileSize,
		ImportedBy:        importedBy,
		Status:            JobStatusInProgress,
		StartedAt:         time.Now(),
	}
	job.AddDomainEvent(NewBatchJobStartedEvent(job))
	return job, nil
}

// Complete settles the job from its row outcomes. Every row is accounted
// for, success or failure; any failed row moves the status to
// completed_with_errors while a clean run lands in completed.
func (j *BatchJob) Complete(totalRows int, successes []RowSuccessDetail, rowErrors []RowErrorDetail, reportKey string) error {
	if j.Status != JobStatusInProgress {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete job in status %s", j.Status))
	}
	if len(successes)+len(rowErrors) != totalRows {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Row accounting mismatch: %d succeeded + %d failed != %d total",
				len(successes), len(rowErrors), totalRows))
	}

	status := JobStatusCompleted
	if len(rowErrors) > 0 {
		status = JobStatusCompletedWithErrors
	}

	details, err := marshalRowErrors(rowErrors)
	if err != nil {
		return err
	}
	successDetails, err := marshalRowSuccesses(successes)
	if err != nil {
		return err
	}

	now := time.Now()
	j.Status = status
	j.TotalRows = totalRows
	j.SuccessRows = len(successes)
	j.ErrorRows = len(rowErrors)
	j.ErrorDetails = details
	j.SuccessDetails = successDetails
	j.ReportKey = reportKey
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	j.AddDomainEvent(NewBatchJobSettledEvent(j))
	return nil
}

// Abort marks the job aborted after an infrastructure failure. Rows already
// written stay written; the reason tells the operator what broke.
func (j *BatchJob) Abort(reason string, totalRows int, successes []RowSuccessDetail, rowErrors []RowErrorDetail) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot abort job in status %s", j.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Abort requires a reason")
	}

	details, err := marshalRowErrors(rowErrors)
	if err != nil {
		return err
	}
	successDetails, err := marshalRowSuccesses(successes)
	if err != nil {
		return err
	}

	now := time.Now()
	j.Status = JobStatusAborted
	j.AbortReason = reason
	j.TotalRows = totalRows
	j.SuccessRows = len(successes)
	j.ErrorRows = len(rowErrors)
	j.ErrorDetails = details
	j.SuccessDetails = successDetails
	j.CompletedAt = &now
	j.UpdatedAt = now
	j.IncrementVersion()

	j.AddDomainEvent(NewBatchJobSettledEvent(j))
	return nil
}

// RowErrors parses the stored error details
func (j *BatchJob) RowErrors() ([]RowErrorDetail, error) {
	if j.ErrorDetails == "" || j.ErrorDetails == "[]" {
		return []RowErrorDetail{}, nil
	}
	var details []RowErrorDetail
	if err := json.Unmarshal([]byte(j.ErrorDetails), &details); err != nil {
		return nil, fmt.Errorf("unmarshal row errors: %w", err)
	}
	return details, nil
}

// RowSuccesses parses the stored success outcomes
func (j *BatchJob) RowSuccesses() ([]RowSuccessDetail, error) {
	if j.SuccessDetails == "" || j.SuccessDetails == "[]" {
		return []RowSuccessDetail{}, nil
	}
	var details []RowSuccessDetail
	if err := json.Unmarshal([]byte(j.SuccessDetails), &details); err != nil {
		return nil, fmt.Errorf("unmarshal row successes: %w", err)
	}
	return details, nil
}

// SuccessRate returns the share of rows imported, 0-100
func (j *BatchJob) SuccessRate() float64 {
	if j.TotalRows == 0 {
		return 0
	}
	return float64(j.SuccessRows) / float64(j.TotalRows) * 100
}

func marshalRowErrors(rowErrors []RowErrorDetail) (string, error) {
	if len(rowErrors) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(rowErrors)
	if err != nil {
		return "", fmt.Errorf("marshal row errors: %w", err)
	}
	return string(data), nil
}

func marshalRowSuccesses(successes []RowSuccessDetail) (string, error) {
	if len(successes) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(successes)
	if err != nil {
		return "", fmt.Errorf("marshal row successes: %w", err)
	}
	return string(data), nil
}
