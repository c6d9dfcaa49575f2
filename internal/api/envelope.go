package api

import (
	"encoding/json"
	"sort"
	"strings"

	"ereader/internal/session"
)

// Envelope is the {success, data, message, errors} wrapper most responses
// use. Listing and authentication responses add pagination or token fields
// at the same level, so they are decoded here too.
type Envelope struct {
	Success    *bool               `json:"success"`
	Data       json.RawMessage     `json:"data,omitempty"`
	Message    string              `json:"message,omitempty"`
	Errors     map[string][]string `json:"errors,omitempty"`
	Pagination *Pagination         `json:"pagination,omitempty"`

	Token     string        `json:"token,omitempty"`
	User      *session.User `json:"user,omitempty"`
	ExpiresIn int64         `json:"expiresIn,omitempty"`
}

// DecodeEnvelope parses body as an envelope. The second result is false when
// the body is not a JSON object carrying a success flag, i.e. a raw payload.
func DecodeEnvelope(body []byte) (Envelope, bool) {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return Envelope{}, false
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, false
	}
	if env.Success == nil {
		return Envelope{}, false
	}
	return env, true
}

// Failed reports an explicit success=false.
func (e Envelope) Failed() bool {
	return e.Success != nil && !*e.Success
}

// FirstFieldError returns "field: message" for the alphabetically first
// field with an error, or "".
func (e Envelope) FirstFieldError() string {
	if len(e.Errors) == 0 {
		return ""
	}
	fields := make([]string, 0, len(e.Errors))
	for f := range e.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if msgs := e.Errors[f]; len(msgs) > 0 && msgs[0] != "" {
			return f + ": " + msgs[0]
		}
	}
	return ""
}

// LoginResponse is the result of every authentication operation.
type LoginResponse struct {
	Success   bool          `json:"success"`
	Token     string        `json:"token,omitempty"`
	User      *session.User `json:"user,omitempty"`
	ExpiresIn int64         `json:"expiresIn,omitempty"`
	Message   string        `json:"message,omitempty"`
}

// Session returns the session carried by the response, if complete.
func (r LoginResponse) Session() (session.Session, bool) {
	if !r.Success || r.Token == "" || r.User == nil {
		return session.Session{}, false
	}
	s := session.Session{Token: r.Token, User: *r.User}
	if s.Validate() != nil {
		return session.Session{}, false
	}
	return s, true
}
