package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", StatusClass(204))
	assert.Equal(t, "4xx", StatusClass(409))
	assert.Equal(t, "5xx", StatusClass(503))
	assert.Equal(t, "other", StatusClass(0))
	assert.Equal(t, "other", StatusClass(700))
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRemoteCall("books.list", "success", 120*time.Millisecond)
	m.ObserveRemoteCall("books.list", "network", time.Second)
	m.ObserveHTTPStatus("books.list", 200)
	m.RecordSessionWrite("write")
	m.RecordDocument("miss", 2048)
	m.RecordStaleResponse()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteCalls.WithLabelValues("books.list", "network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPResponses.WithLabelValues("books.list", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionWrites.WithLabelValues("write")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(m.DocumentBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResponses))
}

func TestNilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRemoteCall("health", "success", time.Millisecond)
		m.ObserveHTTPStatus("health", 200)
		m.RecordSessionWrite("clear")
		m.RecordAuthTransition("logged_out")
		m.RecordDocument("hit", 0)
		m.RecordStaleResponse()
	})
}

func TestNewWithoutRegistererDoesNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
