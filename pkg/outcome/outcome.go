// Package outcome provides the tagged result type returned by every remote
// operation of the client: either Success carrying a value, or Failure
// carrying a classified kind and a human-readable message.
//
// Failures are values, not errors thrown across layers. Callers branch on
// IsSuccess (or Fold) and surface Message to the user verbatim.
package outcome

import (
	dErrors "ereader/pkg/domain-errors"
)

// Ack is the value of a successful operation that has no natural result.
type Ack struct{}

// Failure describes why an operation did not succeed.
type Failure struct {
	Kind    dErrors.Code
	Message string
}

// Error renders the failure as a domain error so it can join error chains
// at outer boundaries (CLI exit codes, logs).
func (f Failure) Error() error {
	return &dErrors.Error{Code: f.Kind, Message: f.Message}
}

// Outcome is Success(value) or Failure(kind, message). The zero value is a
// success holding the zero T.
type Outcome[T any] struct {
	value   T
	failure *Failure
}

// Success wraps a value.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{value: v}
}

// Fail builds a failed outcome.
func Fail[T any](kind dErrors.Code, message string) Outcome[T] {
	return Outcome[T]{failure: &Failure{Kind: kind, Message: message}}
}

// FromFailure re-types an existing failure.
func FromFailure[T any](f Failure) Outcome[T] {
	return Fail[T](f.Kind, f.Message)
}

// FromError converts err into a failed outcome, keeping the code of a domain
// error and falling back to CodeInternal otherwise.
func FromError[T any](err error) Outcome[T] {
	return Fail[T](dErrors.CodeOf(err), err.Error())
}

// IsSuccess reports whether the outcome holds a value.
func (o Outcome[T]) IsSuccess() bool {
	return o.failure == nil
}

// Value returns the held value and true on success.
func (o Outcome[T]) Value() (T, bool) {
	if o.failure != nil {
		var zero T
		return zero, false
	}
	return o.value, true
}

// MustValue returns the value of a successful outcome and panics otherwise.
// Intended for tests and for call sites that already checked IsSuccess.
func (o Outcome[T]) MustValue() T {
	if o.failure != nil {
		panic("outcome: MustValue on failure: " + o.failure.Message)
	}
	return o.value
}

// Failure returns the failure and true when the outcome failed.
func (o Outcome[T]) Failure() (Failure, bool) {
	if o.failure == nil {
		return Failure{}, false
	}
	return *o.failure, true
}

// Kind is the failure kind, or "" on success.
func (o Outcome[T]) Kind() dErrors.Code {
	if o.failure == nil {
		return ""
	}
	return o.failure.Kind
}

// Message is the failure message, or "" on success.
func (o Outcome[T]) Message() string {
	if o.failure == nil {
		return ""
	}
	return o.failure.Message
}

// Err returns nil on success and a *domainerrors.Error on failure.
func (o Outcome[T]) Err() error {
	if o.failure == nil {
		return nil
	}
	return o.failure.Error()
}

// Fold calls exactly one of the callbacks. Nil callbacks are skipped.
func (o Outcome[T]) Fold(onSuccess func(T), onFailure func(Failure)) {
	if o.failure == nil {
		if onSuccess != nil {
			onSuccess(o.value)
		}
		return
	}
	if onFailure != nil {
		onFailure(*o.failure)
	}
}

// Map transforms the value of a successful outcome.
func Map[T, U any](o Outcome[T], f func(T) U) Outcome[U] {
	if o.failure != nil {
		return Outcome[U]{failure: o.failure}
	}
	return Success(f(o.value))
}

// Then chains an operation that itself produces an outcome.
func Then[T, U any](o Outcome[T], f func(T) Outcome[U]) Outcome[U] {
	if o.failure != nil {
		return Outcome[U]{failure: o.failure}
	}
	return f(o.value)
}
