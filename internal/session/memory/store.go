package memory

import (
	"context"
	"sync"

	"ereader/internal/platform/metrics"
	"ereader/internal/session"
)

// InMemoryStore keeps the session in process memory for tests and dev runs.
type InMemoryStore struct {
	mu      sync.Mutex
	current *session.Session
	bus     *session.Broadcaster
	metrics *metrics.Metrics
}

// Option configures an InMemoryStore.
type Option func(*InMemoryStore)

// WithMetrics records writes and clears.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *InMemoryStore) {
		s.metrics = m
	}
}

// WithSession seeds the store.
func WithSession(sess session.Session) Option {
	return func(s *InMemoryStore) {
		s.current = (&sess).Clone()
	}
}

// New constructs an empty in-memory store.
func New(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{bus: session.NewBroadcaster()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Read(_ context.Context) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone(), nil
}

func (s *InMemoryStore) Observe(ctx context.Context) <-chan *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus.Subscribe(ctx, s.current)
}

func (s *InMemoryStore) Write(_ context.Context, sess session.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = (&sess).Clone()
	s.bus.Publish(s.current)
	s.metrics.RecordSessionWrite("write")
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.bus.Publish(nil)
	s.metrics.RecordSessionWrite("clear")
	return nil
}

var _ session.Store = (*InMemoryStore)(nil)
