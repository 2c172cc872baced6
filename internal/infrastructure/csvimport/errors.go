package csvimport

import (
	"errors"
	"fmt"
)

// Row error codes recorded on rejected import rows
const (
	ErrCodeMalformedRow     = "MALFORMED_ROW"
	ErrCodeRequiredField    = "REQUIRED_FIELD"
	ErrCodeInvalidFormat    = "INVALID_FORMAT"
	ErrCodeDuplicateInFile  = "DUPLICATE_IN_FILE"
	ErrCodeDuplicateInDB    = "DUPLICATE_IN_DB"
	ErrCodeValidationFailed = "VALIDATION_ERROR"
)

// Common file-level errors
var (
	// ErrEmptyFile is returned when the CSV file is empty
	ErrEmptyFile = errors.New("CSV file is empty")

	// ErrInvalidEncoding is returned when the file is not valid UTF-8
	ErrInvalidEncoding = errors.New("invalid file encoding, expected UTF-8")

	// ErrMissingHeader is returned when the CSV file has no header row
	ErrMissingHeader = errors.New("CSV file missing header row")
)

// MissingHeadersError names the required columns absent from the header row
type MissingHeadersError struct {
	Headers []string
}

// Error implements the error interface
func (e *MissingHeadersError) Error() string {
	return fmt.Sprintf("CSV file missing required columns: %v", e.Headers)
}

// RowError describes why one data row was rejected
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// NewRowError creates a new RowError
func NewRowError(row int, column, code, message string) RowError {
	return RowError{Row: row, Column: column, Code: code, Message: message}
}
