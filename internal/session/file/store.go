package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"ereader/internal/platform/logger"
	"ereader/internal/platform/metrics"
	"ereader/internal/session"
)

// FileStore persists the session as a single JSON document, optionally
// sealed. Every write replaces the whole file via rename, so a reader sees
// either the old or the new session and never a mix of the two.
type FileStore struct {
	path    string
	sealer  *session.Sealer
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu  sync.Mutex
	bus *session.Broadcaster
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithSealer encrypts the file at rest.
func WithSealer(s *session.Sealer) Option {
	return func(f *FileStore) {
		f.sealer = s
	}
}

// WithLogger sets the logger used to report unreadable records.
func WithLogger(l *slog.Logger) Option {
	return func(f *FileStore) {
		f.logger = l
	}
}

// WithMetrics records writes and clears.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *FileStore) {
		f.metrics = m
	}
}

// New returns a store persisting to path. The parent directory is created
// on first write.
func New(path string, opts ...Option) *FileStore {
	f := &FileStore{
		path:   path,
		logger: logger.Discard(),
		bus:    session.NewBroadcaster(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Path returns the file backing the store.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Read(_ context.Context) (*session.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileStore) Observe(ctx context.Context) <-chan *session.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, err := f.load()
	if err != nil {
		f.logger.Warn("session read failed, observing as logged out", "path", f.path, "error", err)
		current = nil
	}
	return f.bus.Subscribe(ctx, current)
}

func (f *FileStore) Write(_ context.Context, s session.Session) error {
	rec, err := session.EncodeRecord(s)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	data, err = f.sealer.Seal(data)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.replace(data); err != nil {
		return err
	}
	f.bus.Publish(&s)
	f.metrics.RecordSessionWrite("write")
	return nil
}

func (f *FileStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	f.bus.Publish(nil)
	f.metrics.RecordSessionWrite("clear")
	return nil
}

// load must be called with mu held.
func (f *FileStore) load() (*session.Session, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	plain, err := f.sealer.Open(raw)
	if err != nil {
		f.logger.Warn("session file unreadable, treating as logged out", "path", f.path, "error", err)
		return nil, nil
	}
	var rec session.Record
	if err := json.Unmarshal(plain, &rec); err != nil {
		f.logger.Warn("session file malformed, treating as logged out", "path", f.path, "error", err)
		return nil, nil
	}
	s, err := rec.Decode()
	if err != nil {
		f.logger.Warn("session record corrupt, treating as logged out", "path", f.path, "error", err)
		return nil, nil
	}
	return s, nil
}

// replace must be called with mu held.
func (f *FileStore) replace(data []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		cleanup()
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // already failing
		cleanup()
		return fmt.Errorf("sync temp session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp session file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp session file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		cleanup()
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

var _ session.Store = (*FileStore)(nil)
