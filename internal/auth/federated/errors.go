package federated

import (
	"context"
	"errors"
	"fmt"

	dErrors "ereader/pkg/domain-errors"
)

// ErrorCode classifies identity provider failures so callers never inspect
// message text.
type ErrorCode string

const (
	// ErrorCancelled means the user or the caller's context aborted sign-in.
	ErrorCancelled ErrorCode = "cancelled"
	// ErrorNoCredential means sign-in finished without yielding an ID token.
	ErrorNoCredential ErrorCode = "no_credential"
	// ErrorInvalidToken means the provider or the token claims rejected the credential.
	ErrorInvalidToken ErrorCode = "invalid_token"
	// ErrorNetwork means the provider could not be reached.
	ErrorNetwork ErrorCode = "network"
	// ErrorProviderUnavailable covers quota exhaustion and provider outages.
	ErrorProviderUnavailable ErrorCode = "provider_unavailable"
	// ErrorConfiguration means the client ID or redirect setup is wrong.
	ErrorConfiguration ErrorCode = "configuration"
	ErrorUnknown       ErrorCode = "unknown"
)

// Error is a classified provider failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("federated sign-in [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("federated sign-in [%s]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified provider error.
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from err. Context cancellation maps to
// ErrorCancelled; anything unclassified is ErrorUnknown.
func CodeOf(err error) ErrorCode {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCancelled
	}
	return ErrorUnknown
}

// Kind maps a provider error onto the client failure taxonomy.
func (c ErrorCode) Kind() dErrors.Code {
	switch c {
	case ErrorNetwork:
		return dErrors.CodeNetwork
	case ErrorInvalidToken:
		return dErrors.CodeUnauthenticated
	case ErrorProviderUnavailable:
		return dErrors.CodeServerError
	default:
		return dErrors.CodeDomain
	}
}

// UserMessage is the text shown to the user for c.
func (c ErrorCode) UserMessage() string {
	switch c {
	case ErrorCancelled:
		return "Google sign-in was cancelled."
	case ErrorNoCredential:
		return "Failed to get ID token"
	case ErrorInvalidToken:
		return "Google sign-in could not be verified. Please try again."
	case ErrorNetwork:
		return "Network error. Please check your internet connection."
	case ErrorProviderUnavailable:
		return "Google Sign-In quota exceeded or API not enabled."
	case ErrorConfiguration:
		return "Google Sign-In configuration error. Please check the client ID."
	default:
		return "Google sign-in failed"
	}
}
