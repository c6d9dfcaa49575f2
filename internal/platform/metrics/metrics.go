package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the client-side Prometheus collectors. All methods are safe
// on a nil receiver so components can run without instrumentation.
type Metrics struct {
	RemoteCalls     *prometheus.CounterVec   // by endpoint and outcome kind
	RemoteLatency   *prometheus.HistogramVec // by endpoint
	HTTPResponses   *prometheus.CounterVec   // by endpoint and status class
	SessionWrites   *prometheus.CounterVec   // by op (write, clear)
	AuthTransitions *prometheus.CounterVec   // by target state
	DocumentCache   *prometheus.CounterVec   // by result (hit, miss, error)
	DocumentBytes   prometheus.Counter
	StaleResponses  prometheus.Counter
}

// New registers all collectors on reg. A nil reg gets a private registry,
// which keeps repeated construction in tests from colliding.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		RemoteCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ereader_remote_calls_total",
			Help: "Remote operations by endpoint and outcome kind",
		}, []string{"endpoint", "outcome"}),
		RemoteLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ereader_remote_call_duration_seconds",
			Help:    "Latency of remote operations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		HTTPResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ereader_http_responses_total",
			Help: "HTTP responses received by endpoint and status class",
		}, []string{"endpoint", "class"}),
		SessionWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ereader_session_writes_total",
			Help: "Session store mutations by operation",
		}, []string{"op"}),
		AuthTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ereader_auth_transitions_total",
			Help: "Authentication state transitions by target state",
		}, []string{"state"}),
		DocumentCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ereader_document_cache_total",
			Help: "Document resolution results",
		}, []string{"result"}),
		DocumentBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "ereader_document_download_bytes_total",
			Help: "Bytes downloaded into the document cache",
		}),
		StaleResponses: factory.NewCounter(prometheus.CounterOpts{
			Name: "ereader_stale_responses_dropped_total",
			Help: "Responses discarded because a newer request superseded them",
		}),
	}
}

// ObserveRemoteCall records one façade call.
func (m *Metrics) ObserveRemoteCall(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RemoteCalls.WithLabelValues(endpoint, outcome).Inc()
	m.RemoteLatency.WithLabelValues(endpoint).Observe(d.Seconds())
}

// ObserveHTTPStatus records a received HTTP status.
func (m *Metrics) ObserveHTTPStatus(endpoint string, status int) {
	if m == nil {
		return
	}
	m.HTTPResponses.WithLabelValues(endpoint, StatusClass(status)).Inc()
}

// RecordSessionWrite counts a session store mutation.
func (m *Metrics) RecordSessionWrite(op string) {
	if m == nil {
		return
	}
	m.SessionWrites.WithLabelValues(op).Inc()
}

// RecordAuthTransition counts a move into state.
func (m *Metrics) RecordAuthTransition(state string) {
	if m == nil {
		return
	}
	m.AuthTransitions.WithLabelValues(state).Inc()
}

// RecordDocument counts a document resolution result.
func (m *Metrics) RecordDocument(result string, bytes int64) {
	if m == nil {
		return
	}
	m.DocumentCache.WithLabelValues(result).Inc()
	if bytes > 0 {
		m.DocumentBytes.Add(float64(bytes))
	}
}

// RecordStaleResponse counts a response dropped by a request guard.
func (m *Metrics) RecordStaleResponse() {
	if m == nil {
		return
	}
	m.StaleResponses.Inc()
}

// StatusClass buckets a status code as "2xx", "4xx", etc.
func StatusClass(status int) string {
	switch {
	case status >= 100 && status < 600:
		return string(rune('0'+status/100)) + "xx"
	default:
		return "other"
	}
}
