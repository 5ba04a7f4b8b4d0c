package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
	// ErrCodeValidationLength is used when a field length is invalid
	ErrCodeValidationLength = "ERR_VALIDATION_LENGTH"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when a row lock times out or deadlocks
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeCompanyInactive is used when the issuing company has been deactivated
	ErrCodeCompanyInactive = "ERR_COMPANY_INACTIVE"
	// ErrCodeOutOfPeriod is used when documents fall outside the requested reporting period
	ErrCodeOutOfPeriod = "ERR_OUT_OF_PERIOD"
	// ErrCodeAlreadyTransmitted is used when a document was already delivered to the platform
	ErrCodeAlreadyTransmitted = "ERR_ALREADY_TRANSMITTED"
	// ErrCodeSequenceCorrupted is used when the numbering sequence state is inconsistent
	ErrCodeSequenceCorrupted = "ERR_SEQUENCE_CORRUPTED"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
	// ErrCodeTooManyRequests is an alias for rate limiting
	ErrCodeTooManyRequests = "ERR_TOO_MANY_REQUESTS"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,
	ErrCodeValidationLength:   http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:       http.StatusUnprocessableEntity,
	ErrCodeCompanyInactive:    http.StatusUnprocessableEntity,
	ErrCodeOutOfPeriod:        http.StatusUnprocessableEntity,
	ErrCodeAlreadyTransmitted: http.StatusConflict,
	ErrCodeSequenceCorrupted:  http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeTooManyRequests: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to the standardized API codes.
// Domain errors keep their own vocabulary; the HTTP layer translates.
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":            ErrCodeNotFound,
	"ALREADY_EXISTS":       ErrCodeAlreadyExists,
	"INVALID_INPUT":        ErrCodeInvalidInput,
	"INVALID_STATE":        ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":     ErrCodeValidation,
	"BAD_REQUEST":          ErrCodeBadRequest,
	"INTERNAL_ERROR":       ErrCodeInternal,

	// Document construction and mutation
	"INVALID_DOCUMENT_TYPE": ErrCodeInvalidInput,
	"INVALID_CATEGORY":      ErrCodeInvalidInput,
	"INVALID_CUSTOMER":      ErrCodeInvalidInput,
	"INVALID_SUPPLIER":      ErrCodeInvalidInput,
	"INVALID_LINE":          ErrCodeInvalidInput,
	"INVALID_AMOUNT":        ErrCodeInvalidInput,
	"INVALID_PARTY":         ErrCodeInvalidInput,
	"INVALID_SIREN":         ErrCodeInvalidInput,
	"INVALID_SIRET":         ErrCodeInvalidInput,
	"INVALID_NUMBER":        ErrCodeInvalidInput,
	"INVALID_ISSUE_DATE":    ErrCodeInvalidInput,
	"INVALID_REASON":        ErrCodeInvalidInput,
	"INVALID_INVOICE":       ErrCodeInvalidInput,
	"EMPTY_INVOICE":         ErrCodeBusinessRule,

	// Fiscal calendar and reporting
	"INVALID_FISCAL_CONFIG": ErrCodeInvalidInput,
	"INVALID_FISCAL_YEAR":   ErrCodeInvalidInput,
	"INVALID_FREQUENCY":     ErrCodeInvalidInput,
	"OUT_OF_PERIOD":         ErrCodeOutOfPeriod,
	"MISSING_SIREN":         ErrCodeBusinessRule,

	// Company resolution and numbering
	"UNKNOWN_COMPANY":       ErrCodeNotFound,
	"COMPANY_INACTIVE":      ErrCodeCompanyInactive,
	"SEQUENCE_CORRUPTED":    ErrCodeSequenceCorrupted,
	"NO_ACTIVE_TRANSACTION": ErrCodeInternal,

	// Transmission
	"ALREADY_TRANSMITTED": ErrCodeAlreadyTransmitted,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
