package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "ereader/pkg/domain-errors"
)

// Normalizable is implemented by request bodies that tidy their fields
// (trimming, case folding) before they are checked.
type Normalizable interface {
	Normalize()
}

// Check validates a decoded request body.
type Check func(req any) error

// Decode reads a JSON request body into T, normalizes it and runs check.
// On failure it writes the error envelope and returns nil, false. A check
// error that is not a domain error is reported as a validation failure.
//
//	req, ok := httputil.Decode[api.LibraryRequest](w, r, s.logger, requestID, validation.Validate)
//	if !ok {
//		return
//	}
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, requestID string, check Check) (*T, bool) {
	ctx := r.Context()
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeValidation, "Invalid request body"))
		return nil, false
	}
	if n, ok := any(&req).(Normalizable); ok {
		n.Normalize()
	}
	if check == nil {
		return &req, true
	}
	if err := check(&req); err != nil {
		logger.InfoContext(ctx, "request rejected",
			"error", err,
			"request_id", requestID,
		)
		var de *dErrors.Error
		if !errors.As(err, &de) {
			err = dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
		}
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
