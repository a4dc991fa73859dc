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

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the user lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	// ErrCodeStaleRead is used when a write is based on an outdated agreement version
	ErrCodeStaleRead = "ERR_STALE_READ"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeBusinessRule is used for generic business rule violations
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
	// ErrCodeNoActiveAgreement is used when verification finds no agreement covering the invoice date
	ErrCodeNoActiveAgreement = "ERR_NO_ACTIVE_AGREEMENT"
	// ErrCodeInvalidConfig is used when an agreement configuration fails its consistency checks
	ErrCodeInvalidConfig = "ERR_INVALID_CONFIG"
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

// File import error codes
const (
	// ErrCodeEmptyFile is used when an uploaded file has no content
	ErrCodeEmptyFile = "ERR_EMPTY_FILE"
	// ErrCodeDuplicateUpload is used when the same file content was already imported
	ErrCodeDuplicateUpload = "ERR_DUPLICATE_UPLOAD"
	// ErrCodePayloadTooLarge is used when an upload exceeds the size limit
	ErrCodePayloadTooLarge = "ERR_PAYLOAD_TOO_LARGE"
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

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeStaleRead:           http.StatusConflict,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:      http.StatusUnprocessableEntity,
	ErrCodeBusinessRule:      http.StatusUnprocessableEntity,
	ErrCodeNoActiveAgreement: http.StatusUnprocessableEntity,
	ErrCodeInvalidConfig:     http.StatusUnprocessableEntity,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// File import errors
	ErrCodeEmptyFile:       http.StatusBadRequest,
	ErrCodeDuplicateUpload: http.StatusConflict,
	ErrCodePayloadTooLarge: http.StatusRequestEntityTooLarge,

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

// LegacyErrorCodeMapping maps domain error codes to standardized API codes.
// Domain code names describe what went wrong; the API codes group them by
// how the client should react.
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":      ErrCodeNotFound,
	"USER_NOT_FOUND": ErrCodeNotFound,

	"ALREADY_EXISTS":        ErrCodeAlreadyExists,
	"DUPLICATE_INVOICE":     ErrCodeAlreadyExists,
	"DUPLICATE_LABORATORY":  ErrCodeAlreadyExists,
	"DUPLICATE_TEMPLATE":    ErrCodeAlreadyExists,
	"DUPLICATE_EMAIL":       ErrCodeAlreadyExists,
	"DUPLICATE_TENANT_CODE": ErrCodeAlreadyExists,
	"DUPLICATE_UPLOAD":      ErrCodeDuplicateUpload,

	"CONCURRENCY_CONFLICT": ErrCodeConcurrencyConflict,
	"STALE_READ":           ErrCodeStaleRead,

	"NO_ACTIVE_AGREEMENT": ErrCodeNoActiveAgreement,
	"INVALID_CONFIG":      ErrCodeInvalidConfig,
	"INVARIANT_VIOLATION": ErrCodeBusinessRule,

	"INVALID_STATE":             ErrCodeInvalidState,
	"INVALID_STATUS_TRANSITION": ErrCodeInvalidState,
	"AGREEMENT_ARCHIVED":        ErrCodeInvalidState,
	"SCHEDULE_CANCELLED":        ErrCodeInvalidState,
	"ALREADY_RESOLVED":          ErrCodeInvalidState,

	"UNAUTHORIZED":        ErrCodeUnauthorized,
	"INVALID_CREDENTIALS": ErrCodeUnauthorized,
	"FORBIDDEN":           ErrCodeForbidden,
	"TENANT_SUSPENDED":    ErrCodeForbidden,
	"ACCOUNT_DEACTIVATED": ErrCodeForbidden,
	"TOKEN_EXPIRED":       ErrCodeTokenExpired,
	"TOKEN_INVALID":       ErrCodeTokenInvalid,
	"TOKEN_REVOKED":       ErrCodeTokenInvalid,
	"TOKEN_MAX_REFRESH":   ErrCodeTokenInvalid,
	"TOKEN_ERROR":         ErrCodeTokenInvalid,

	"EMPTY_FILE": ErrCodeEmptyFile,

	"INVALID_INPUT":            ErrCodeInvalidInput,
	"INVALID_AMOUNT":           ErrCodeInvalidInput,
	"INVALID_DATE":             ErrCodeInvalidInput,
	"INVALID_QUANTITY":         ErrCodeInvalidInput,
	"INVALID_UNIT_PRICE":       ErrCodeInvalidInput,
	"INVALID_RATE":             ErrCodeInvalidInput,
	"INVALID_FRANCO":           ErrCodeInvalidInput,
	"INVALID_FREE_GOODS_RATIO": ErrCodeInvalidInput,
	"INVALID_FREQUENCY":        ErrCodeInvalidInput,
	"INVALID_REBATE_TYPE":      ErrCodeInvalidInput,
	"INVALID_SCOPE":            ErrCodeInvalidInput,
	"INVALID_PERIOD":           ErrCodeInvalidInput,
	"INVALID_START_DATE":       ErrCodeInvalidInput,
	"INVALID_INVOICE_DATE":     ErrCodeInvalidInput,
	"INVALID_INVOICE_NUMBER":   ErrCodeInvalidInput,
	"INVALID_LABORATORY":       ErrCodeInvalidInput,
	"INVALID_LABORATORY_NAME":  ErrCodeInvalidInput,
	"INVALID_AGREEMENT_NAME":   ErrCodeInvalidInput,
	"INVALID_TEMPLATE_NAME":    ErrCodeInvalidInput,
	"INVALID_TENANT_NAME":      ErrCodeInvalidInput,
	"INVALID_TENANT_CODE":      ErrCodeInvalidInput,
	"INVALID_EMAIL":            ErrCodeInvalidInput,
	"INVALID_PASSWORD":         ErrCodeInvalidInput,
	"INVALID_AUDIT_ACTION":     ErrCodeInvalidInput,

	"VALIDATION_ERROR": ErrCodeValidation,
	"BAD_REQUEST":      ErrCodeBadRequest,
	"INTERNAL_ERROR":   ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
