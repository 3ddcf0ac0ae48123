package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics holds the Prometheus collectors for the auth API. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	requestTotal    *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	authEvents      *prometheus.CounterVec
	tokenRejections *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Collectors that
// are already registered are reused.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docassist",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docassist",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docassist",
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Auth operations by outcome",
		}, []string{"operation", "outcome"}),
		tokenRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docassist",
			Subsystem: "auth",
			Name:      "token_rejections_total",
			Help:      "Requests rejected by the authentication gate",
		}, []string{"reason"}),
	}

	m.requestTotal = register(reg, m.requestTotal)
	m.requestLatency = register(reg, m.requestLatency)
	m.authEvents = register(reg, m.authEvents)
	m.tokenRejections = register(reg, m.tokenRejections)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(d.Seconds())
}

// AuthEvent counts an auth operation outcome such as ("login", "invalid_credentials").
func (m *Metrics) AuthEvent(operation, outcome string) {
	if m == nil {
		return
	}
	m.authEvents.With(prometheus.Labels{"operation": operation, "outcome": outcome}).Inc()
}

// TokenRejected counts a request turned away by the authentication gate.
func (m *Metrics) TokenRejected(reason string) {
	if m == nil {
		return
	}
	m.tokenRejections.With(prometheus.Labels{"reason": reason}).Inc()
}
