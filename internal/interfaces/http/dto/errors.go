package dto

import (
	"net/http"
	"strings"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Input error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when an upload exceeds the size ceiling
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
	// ErrCodeUnsupportedMedia is used when an upload has the wrong content type
	ErrCodeUnsupportedMedia = "ERR_UNSUPPORTED_MEDIA"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used when a business key collides with an existing record
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeTargetLocked is used when an asset is claimed by another active work order
	ErrCodeTargetLocked = "ERR_TARGET_LOCKED"
)

// Business rule error codes
const (
	// ErrCodePreconditionFailed is used when asset state disallows an operation
	ErrCodePreconditionFailed = "ERR_PRECONDITION_FAILED"
	// ErrCodeInvalidTransition is used for disallowed lifecycle transitions
	ErrCodeInvalidTransition = "ERR_INVALID_TRANSITION"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
)

// Infrastructure error codes
const (
	// ErrCodePipelineUnavailable is used when the batch pipeline cannot reach the ledger
	ErrCodePipelineUnavailable = "ERR_PIPELINE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeInvalidJSON: http.StatusBadRequest,

	// Upload errors
	ErrCodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeUnsupportedMedia: http.StatusUnsupportedMediaType,

	// Resource errors -> 404 / 409
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeTargetLocked:        http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodePreconditionFailed: http.StatusUnprocessableEntity,
	ErrCodeInvalidTransition:  http.StatusUnprocessableEntity,
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,

	// Infrastructure errors -> 503 Service Unavailable
	ErrCodePipelineUnavailable: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to the standardized codes
// the API surface exposes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":           ErrCodeNotFound,
	"CONFLICT":            ErrCodeConflict,
	"VALIDATION_ERROR":    ErrCodeValidation,
	"PRECONDITION_FAILED": ErrCodePreconditionFailed,
	"TARGET_LOCKED":       ErrCodeTargetLocked,
	"VERSION_CONFLICT":    ErrCodeConcurrencyConflict,
	"INVALID_TRANSITION":  ErrCodeInvalidTransition,
	"INVALID_STATE":       ErrCodeInvalidState,
	"PIPELINE_FATAL":      ErrCodePipelineUnavailable,
}

// NormalizeErrorCode converts a domain error code to the standardized format.
// Field-level constructor codes (INVALID_TAG, INVALID_SERIAL, ...) collapse
// into the validation code; anything unrecognized falls through as-is and
// GetHTTPStatus treats it as an internal error.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	if strings.HasPrefix(code, "INVALID_") {
		return ErrCodeValidation
	}
	return code
}
