package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	// Field names the offending request field for validation failures.
	Field string
	Err   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewValidationError reports a bad request value together with the field it came from.
func NewValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// NewConfigError wraps a registry loading failure.
func NewConfigError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeConfig, message, err)
}

// NewEvidenceError wraps a failure to store or attach an evidence blob.
func NewEvidenceError(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEvidence, message, err)
}

// NewConcurrencyError wraps a failure to acquire a project's write lock.
func NewConcurrencyError(projectID string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeConcurrency, fmt.Sprintf("project %s is busy", projectID), err)
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeAlreadyExists = "ALREADY_EXISTS"
	ErrCodeConfig        = "CONFIG_ERROR"
	ErrCodeEvidence      = "EVIDENCE_ERROR"
	ErrCodeConcurrency   = "CONCURRENCY_ERROR"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Validation errors
var (
	ErrInvalidItemStatus   = NewValidationError("status", "invalid checklist item status")
	ErrNoPacksSelected     = NewValidationError("selected_packs", "at least one pack must be selected")
	ErrInvalidReportFormat = NewValidationError("format", "unsupported report format")
	ErrEmptyPatch          = NewValidationError("body", "at least one of status, owner, notes is required")
)

// Not found errors
var (
	ErrProjectNotFound  = NewDomainError(ErrCodeNotFound, "project not found")
	ErrItemNotFound     = NewDomainError(ErrCodeNotFound, "checklist item not found")
	ErrIndustryNotFound = NewDomainError(ErrCodeNotFound, "industry not found")
	ErrUseCaseNotFound  = NewDomainError(ErrCodeNotFound, "use case not found")
	ErrPackNotFound     = NewDomainError(ErrCodeNotFound, "pack not found")
	ErrBlobNotFound     = NewDomainError(ErrCodeNotFound, "evidence blob not found")
)

// Already exists errors
var (
	ErrProjectAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "project already exists")
)

// Concurrency errors
var (
	ErrLockTimeout = NewDomainError(ErrCodeConcurrency, "timed out waiting for project lock")
)
