package viewstate

import (
	"context"
	"log/slog"
	"sync"

	"ereader/internal/platform/metrics"
	"ereader/pkg/outcome"
)

// Status is the loading flag plus the last error and confirmation messages
// of a holder.
type Status struct {
	Loading bool
	Error   string
	Notice  string
}

type Option func(*deps)

type deps struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *deps) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *deps) {
		d.metrics = m
	}
}

func newDeps(opts []Option) deps {
	d := deps{}
	for _, opt := range opts {
		opt(&d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// tracker implements Status bookkeeping and user-initiated retry shared by
// every holder.
type tracker struct {
	deps
	status *Observable[Status]

	mu       sync.Mutex
	inflight int
	lastRead func(context.Context)
}

func newTracker(opts []Option) tracker {
	return tracker{deps: newDeps(opts), status: NewObservable(Status{})}
}

// Status is the holder's loading and message state.
func (t *tracker) Status() *Observable[Status] {
	return t.status
}

func (t *tracker) ClearError() {
	t.status.Update(func(s Status) Status {
		s.Error = ""
		return s
	})
}

func (t *tracker) ClearNotice() {
	t.status.Update(func(s Status) Status {
		s.Notice = ""
		return s
	})
}

// Retry re-issues the last read. It does nothing before the first read.
func (t *tracker) Retry(ctx context.Context) {
	t.mu.Lock()
	read := t.lastRead
	t.mu.Unlock()
	if read != nil {
		read(ctx)
	}
}

func (t *tracker) remember(read func(context.Context)) {
	t.mu.Lock()
	t.lastRead = read
	t.mu.Unlock()
}

func (t *tracker) begin() {
	t.mu.Lock()
	t.inflight++
	t.mu.Unlock()
	t.status.Update(func(s Status) Status {
		s.Loading = true
		s.Error = ""
		return s
	})
}

// end closes a begin. A non-empty failure message becomes the error and a
// non-empty notice replaces the confirmation message.
func (t *tracker) end(errMsg, notice string) {
	t.mu.Lock()
	t.inflight--
	loading := t.inflight > 0
	t.mu.Unlock()
	t.status.Update(func(s Status) Status {
		s.Loading = loading
		if errMsg != "" {
			s.Error = errMsg
		}
		if notice != "" {
			s.Notice = notice
		}
		return s
	})
}

// endWith closes a begin from an outcome, using notice on success.
func endWith[T any](t *tracker, o outcome.Outcome[T], notice string) {
	if f, failed := o.Failure(); failed {
		t.end(f.Message, "")
		return
	}
	t.end("", notice)
}
