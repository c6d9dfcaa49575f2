package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"syscall"

	"ereader/internal/api"
	"ereader/internal/sentinel"
	"ereader/pkg/outcome"

	dErrors "ereader/pkg/domain-errors"
)

// User-facing messages. Holders show these verbatim.
const (
	MsgTimeout        = "Connection timeout. Please check your internet connection."
	MsgRefused        = "Cannot connect to server. Please try again."
	MsgOffline        = "No internet connection. Please check your network."
	MsgCancelled      = "Request was cancelled."
	MsgEmailTaken     = "This email is already registered. Please login or use a different email."
	MsgBadInput       = "Invalid input. Please check your information."
	MsgWeakPassword   = "Password does not meet requirements. Please use at least 8 characters."
	MsgBadRequest     = "Invalid request. Please check your information."
	MsgBadCredentials = "Incorrect email or password. Please try again."
	MsgSessionExpired = "Session expired. Please login again."
	MsgAuthFailed     = "Authentication failed. Please login again."
	MsgForbidden      = "Access denied. You don't have permission to perform this action."
	MsgNotFound       = "Resource not found. Please try again."
	MsgConflict       = "This email is already registered. Please login instead."
	MsgInvalidEmail   = "Invalid email format. Please enter a valid email address."
	MsgTooWeak        = "Password is too weak. Please use at least 8 characters."
	MsgInvalidData    = "Invalid data provided. Please check your input."
	MsgServerError    = "Server error. Please try again later."
	MsgUnexpected     = "Unexpected response from server."
	MsgTooLarge       = "Server response was too large."
)

// classifyTransport maps a failure that produced no HTTP response.
func classifyTransport(err error) outcome.Failure {
	switch {
	case errors.Is(err, sentinel.ErrInvalidInput):
		return outcome.Failure{Kind: dErrors.CodeValidation, Message: MsgBadRequest}
	case errors.Is(err, sentinel.ErrTooLarge):
		return outcome.Failure{Kind: dErrors.CodeServerError, Message: MsgTooLarge}
	case errors.Is(err, context.Canceled):
		return outcome.Failure{Kind: dErrors.CodeNetwork, Message: MsgCancelled}
	case isTimeout(err):
		return outcome.Failure{Kind: dErrors.CodeNetwork, Message: MsgTimeout}
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return outcome.Failure{Kind: dErrors.CodeNetwork, Message: MsgRefused}
	case isOffline(err):
		return outcome.Failure{Kind: dErrors.CodeNetwork, Message: MsgOffline}
	default:
		return outcome.Failure{Kind: dErrors.CodeNetwork, Message: err.Error()}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isOffline(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH)
}

// classifyHTTP maps a non-2xx response. defaultMsg is the operation's own
// fallback, e.g. "Failed to fetch books".
func classifyHTTP(status int, body []byte, defaultMsg string) outcome.Failure {
	cleaned := cleanErrorBody(string(body))
	has := func(words ...string) bool {
		lower := strings.ToLower(cleaned)
		for _, w := range words {
			if !strings.Contains(lower, w) {
				return false
			}
		}
		return cleaned != ""
	}
	orDefault := func(fallback string) string {
		if cleaned != "" {
			return cleaned
		}
		return withStatus(fallback, status)
	}

	switch {
	case status == http.StatusBadRequest:
		msg := orDefault(MsgBadRequest)
		switch {
		case has("email", "already exists"):
			msg = MsgEmailTaken
		case has("invalid"):
			msg = MsgBadInput
		case has("password"):
			msg = MsgWeakPassword
		}
		return outcome.Failure{Kind: dErrors.CodeValidation, Message: msg}

	case status == http.StatusUnauthorized:
		msg := MsgAuthFailed
		switch {
		case has("credentials"), has("password"):
			msg = MsgBadCredentials
		case has("token"):
			msg = MsgSessionExpired
		}
		return outcome.Failure{Kind: dErrors.CodeUnauthenticated, Message: msg}

	case status == http.StatusForbidden:
		return outcome.Failure{Kind: dErrors.CodeForbidden, Message: MsgForbidden}

	case status == http.StatusNotFound:
		return outcome.Failure{Kind: dErrors.CodeNotFound, Message: MsgNotFound}

	case status == http.StatusConflict:
		msg := orDefault(MsgConflict)
		if has("already exists") {
			msg = MsgEmailTaken
		}
		return outcome.Failure{Kind: dErrors.CodeConflict, Message: msg}

	case status == http.StatusUnprocessableEntity:
		msg := orDefault(MsgInvalidData)
		switch {
		case has("email"):
			msg = MsgInvalidEmail
		case has("password"):
			msg = MsgTooWeak
		}
		return outcome.Failure{Kind: dErrors.CodeValidation, Message: msg}

	case status >= 500:
		return outcome.Failure{Kind: dErrors.CodeServerError, Message: withStatus(MsgServerError, status)}

	default:
		return outcome.Failure{Kind: dErrors.CodeServerError, Message: orDefault(defaultMsg)}
	}
}

func withStatus(msg string, status int) string {
	return fmt.Sprintf("%s (Error %d)", msg, status)
}

var (
	errorField    = regexp.MustCompile(`"(error|message)"\s*:\s*"([^"]*)"`)
	successFalse  = regexp.MustCompile(`"success"\s*:\s*(false|true)\s*,?\s*`)
	fieldLabel    = regexp.MustCompile(`"(error|message)"\s*:\s*`)
	jsonPunctuate = regexp.MustCompile(`[{}\[\]"]`)
)

// cleanErrorBody extracts a human-readable message from an error body: the
// first "error" or "message" string field when present, otherwise the body
// with JSON punctuation stripped. Returns "" when nothing readable is left.
func cleanErrorBody(body string) string {
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	if m := errorField.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(m[2])
	}
	if env, ok := api.DecodeEnvelope([]byte(body)); ok && env.FirstFieldError() != "" {
		return env.FirstFieldError()
	}
	out := successFalse.ReplaceAllString(body, "")
	out = fieldLabel.ReplaceAllString(out, "")
	out = jsonPunctuate.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, ",", "")
	return strings.TrimSpace(out)
}

// envelopeFailure builds the domain failure for a 2xx envelope with
// success=false.
func envelopeFailure(env api.Envelope, defaultMsg string) outcome.Failure {
	msg := strings.TrimSpace(env.Message)
	if msg == "" {
		msg = defaultMsg
	}
	if fe := env.FirstFieldError(); fe != "" {
		msg += ": " + fe
	}
	return outcome.Failure{Kind: dErrors.CodeDomain, Message: msg}
}
