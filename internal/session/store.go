// Package session holds the locally cached authentication state and the
// Store contract implemented by the memory, file and redis backends.
package session

import "context"

// Store persists the current Session.
//
// Error contract:
//   - Read returns (nil, nil) when no session is stored, and also when the
//     stored record cannot be decoded. A corrupt record is logged, never
//     surfaced as an error.
//   - Write rejects a partial session with a CodeInvariantViolation error
//     and leaves the stored value unchanged.
//   - Write and Clear replace both fields atomically.
type Store interface {
	Read(ctx context.Context) (*Session, error)
	// Observe emits the current value immediately and then every value set
	// by Write or Clear. The channel is closed once ctx is done.
	Observe(ctx context.Context) <-chan *Session
	Write(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

//go:generate mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks Store
