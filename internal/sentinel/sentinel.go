package sentinel

import "errors"

// Sentinel dependency errors. Stores and resolvers return these (optionally
// wrapped) so callers can translate them into domain errors exactly once.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrCorrupt      = errors.New("corrupt record")
	ErrTooLarge     = errors.New("too large")
	ErrClosed       = errors.New("closed")
	ErrUnavailable  = errors.New("unavailable")
)
