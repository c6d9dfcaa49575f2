// Package httputil writes the {success, data, message, errors} envelope the
// e-reader backend contract uses and translates domain errors into it.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "ereader/pkg/domain-errors"
)

// Envelope is the response wrapper. Extra top-level fields such as
// pagination or token are merged in by WriteEnvelope.
type Envelope struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Errors after WriteHeader cannot change the status code.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteData writes a successful envelope around data.
func WriteData(w http.ResponseWriter, status int, data any) {
	WriteJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteEnvelope writes a successful envelope with data plus extra top-level
// fields.
func WriteEnvelope(w http.ResponseWriter, status int, data any, extra map[string]any) {
	body := map[string]any{"success": true}
	if data != nil {
		body["data"] = data
	}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, status, body)
}

// WriteMessage writes a successful envelope carrying only a message.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{Success: true, Message: message})
}

// WriteError centralizes domain error translation to HTTP responses. Domain
// failures keep a 200 status with success=false; everything else maps to
// an HTTP status.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), Envelope{Message: domainErr.Message})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, Envelope{Message: "Internal server error"})
}

// WriteFieldErrors writes a 400 envelope with per-field messages.
func WriteFieldErrors(w http.ResponseWriter, message string, fields map[string][]string) {
	WriteJSON(w, http.StatusBadRequest, Envelope{Message: message, Errors: fields})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNetwork:
		return http.StatusGatewayTimeout
	case dErrors.CodeDomain:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}
