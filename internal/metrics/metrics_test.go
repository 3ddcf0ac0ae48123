package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("POST", "/api/auth/login", 200, 20*time.Millisecond)
	m.ObserveRequest("POST", "/api/auth/login", 200, 30*time.Millisecond)

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("POST", "/api/auth/login", "200"))
	assert.Equal(t, float64(2), got)
}

func TestAuthEventsAndRejections(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.AuthEvent("login", "invalid_credentials")
	m.TokenRejected("expired")
	m.TokenRejected("expired")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.authEvents.WithLabelValues("login", "invalid_credentials")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.tokenRejections.WithLabelValues("expired")))
}

func TestNew_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := New(reg)
	second := New(reg)

	second.TokenRejected("missing")
	assert.Equal(t, float64(1), testutil.ToFloat64(first.tokenRejections.WithLabelValues("missing")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/", 200, time.Millisecond)
		m.AuthEvent("signup", "ok")
		m.TokenRejected("invalid")
	})
}
