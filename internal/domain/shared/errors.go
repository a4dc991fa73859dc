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

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// Rebate-domain errors
var (
	// ErrNoActiveAgreement is informational: the invoice has no active agreement
	// to verify or compute against. No anomaly or schedule is written.
	ErrNoActiveAgreement = NewDomainError("NO_ACTIVE_AGREEMENT", "No active agreement for this laboratory")

	// ErrInvalidConfig aborts a computation against a malformed agreement_config.
	ErrInvalidConfig = NewDomainError("INVALID_CONFIG", "Agreement configuration is invalid")

	// ErrInvariantViolation covers transactional invariant breaks, e.g. a second
	// active agreement for the same (tenant, laboratory) pair.
	ErrInvariantViolation = NewDomainError("INVARIANT_VIOLATION", "Operation violates a domain invariant")

	// ErrStaleRead is returned when the underlying invoice or agreement changed
	// during a schedule computation. Retried once by the caller.
	ErrStaleRead = NewDomainError("STALE_READ", "Underlying data changed during computation")
)

// IsNotFound reports whether err is the not-found domain error.
func IsNotFound(err error) bool {
	de, ok := err.(*DomainError)
	return ok && de.Code == ErrNotFound.Code
}
