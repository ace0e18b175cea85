package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error independently of its specific code.
type Kind string

// Error kinds surfaced to API clients.
const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindConflict          Kind = "CONFLICT"
	KindInvalidTransition Kind = "INVALID_TRANSITION"
	KindInvalidState      Kind = "INVALID_STATE"
	KindDependency        Kind = "DEPENDENCY_ERROR"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Kind    Kind        `json:"kind"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, kind Kind, status int, message string) *Error {
	return &Error{Code: code, Kind: kind, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, kind Kind, status int, message string) *Error {
	return &Error{Code: code, Kind: kind, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", KindNotFound, http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", KindForbidden, http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", KindUnauthorized, http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", KindConflict, http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", KindValidation, http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", KindInternal, http.StatusInternalServerError, "internal server error")
	ErrDependency   = New("DEPENDENCY_ERROR", KindDependency, http.StatusServiceUnavailable, "dependency failure")
	ErrCacheMiss    = New("CACHE_MISS", KindNotFound, http.StatusNotFound, "cache miss")

	ErrInvalidTransition = New("INVALID_TRANSITION", KindInvalidTransition, http.StatusConflict, "invalid status transition")
	ErrInvalidState      = New("INVALID_STATE", KindInvalidState, http.StatusPreconditionFailed, "operation not allowed in current state")

	ErrInvalidGrade        = New("INVALID_GRADE", KindValidation, http.StatusBadRequest, "grade must be between 0 and 10")
	ErrInvalidUnit         = New("INVALID_UNIT", KindValidation, http.StatusBadRequest, "unknown grade unit")
	ErrSubjectNotFound     = New("SUBJECT_NOT_FOUND", KindNotFound, http.StatusNotFound, "subject not found")
	ErrPeriodNotFound      = New("PERIOD_NOT_FOUND", KindNotFound, http.StatusNotFound, "period not found")
	ErrEnrollmentNotFound  = New("ENROLLMENT_NOT_FOUND", KindNotFound, http.StatusNotFound, "enrollment not found")
	ErrPeriodNotOpen       = New("PERIOD_NOT_OPEN", KindInvalidState, http.StatusPreconditionFailed, "period is not open for enrollment")
	ErrDuplicateName       = New("DUPLICATE_NAME", KindConflict, http.StatusConflict, "a period with this name already exists")
	ErrOverlapConflict     = New("OVERLAP_CONFLICT", KindConflict, http.StatusConflict, "period overlaps an existing period")
	ErrDuplicateEnrollment = New("DUPLICATE_ENROLLMENT", KindConflict, http.StatusConflict, "student already enrolled in period")
	ErrConcurrentUpdate    = New("CONCURRENT_UPDATE", KindConflict, http.StatusConflict, "resource was modified concurrently")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Kind, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithDetails returns a copy of err carrying structured details for the client.
func WithDetails(err *Error, message string, details interface{}) *Error {
	clone := Clone(err, message)
	if clone != nil {
		clone.Details = details
	}
	return clone
}

// Dependency wraps a collaborator failure so the cause stays reachable via Unwrap.
func Dependency(err error, message string) *Error {
	return Wrap(err, ErrDependency.Code, ErrDependency.Kind, ErrDependency.Status, message)
}

// HasKind reports whether err normalises to an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
