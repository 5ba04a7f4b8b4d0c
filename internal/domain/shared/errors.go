package shared

import "errors"

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

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrUnknownCompany      = NewDomainError("UNKNOWN_COMPANY", "Company is not known to this installation")
	ErrSequenceCorrupted   = NewDomainError("SEQUENCE_CORRUPTED", "Invoice sequence row missing after creation")
	ErrNoActiveTransaction = NewDomainError("NO_ACTIVE_TRANSACTION", "Operation requires an active database transaction")
)

// IsRetryable reports whether the caller may safely retry the whole operation.
// Lock timeouts and deadlocks surface as ErrConcurrencyConflict; the numbering
// core never retries internally, the caller owns the retry policy.
func IsRetryable(err error) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == ErrConcurrencyConflict.Code
	}
	return false
}
