package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// IsDomainError reports whether err is a DomainError carrying the given code
func IsDomainError(err error, code string) bool {
	domainErr, ok := err.(*DomainError)
	return ok && domainErr.Code == code
}

// Common domain errors
var (
	ErrNotFound           = NewDomainError("NOT_FOUND", "Resource not found")
	ErrConflict           = NewDomainError("CONFLICT", "Resource already exists or conflicts with another record")
	ErrValidation         = NewDomainError("VALIDATION_ERROR", "Invalid input provided")
	ErrPreconditionFailed = NewDomainError("PRECONDITION_FAILED", "Current asset state disallows the requested operation")
	ErrTargetLocked       = NewDomainError("TARGET_LOCKED", "Target asset is claimed by another active work order")
	ErrVersionConflict    = NewDomainError("VERSION_CONFLICT", "Record was modified by another process")
	ErrInvalidTransition  = NewDomainError("INVALID_TRANSITION", "Transition not allowed from current state")
	ErrInvalidState       = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrPipelineFatal      = NewDomainError("PIPELINE_FATAL", "Batch pipeline infrastructure failure")
)
