package domainerrors

import "errors"

// Code represents a failure category independent of the transport layer.
// Remote call outcomes are classified into exactly one of these codes before
// they reach a caller.
type Code string

const (
	// CodeNetwork covers transport failures: timeout, no connectivity,
	// connection refused, cancellation.
	CodeNetwork Code = "network"
	// CodeUnauthenticated is HTTP 401: the session is invalid or expired.
	CodeUnauthenticated Code = "unauthenticated"
	// CodeForbidden is HTTP 403.
	CodeForbidden Code = "forbidden"
	// CodeNotFound is HTTP 404.
	CodeNotFound Code = "not_found"
	// CodeConflict is HTTP 409, e.g. duplicate registration.
	CodeConflict Code = "conflict"
	// CodeValidation is HTTP 400/422 or input rejected before sending.
	CodeValidation Code = "validation_failed"
	// CodeServerError is HTTP 5xx or any other unexpected status.
	CodeServerError Code = "server_error"
	// CodeDomain is an envelope with success=false despite HTTP 2xx.
	CodeDomain Code = "domain"

	// CodeInvariantViolation marks programmer errors such as an attempt to
	// persist a partial session. Never produced for remote failures.
	CodeInvariantViolation Code = "invariant_violation"
	CodeInternal           Code = "internal_error"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal when err is not a
// domain error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsRetryable reports whether a user-initiated retry of the same request
// can reasonably succeed.
func (c Code) IsRetryable() bool {
	return c == CodeNetwork || c == CodeServerError
}
