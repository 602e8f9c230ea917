// Package metrics exposes Prometheus collectors for the resolver service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors the resolver records into.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	resolutions     *prometheus.CounterVec
	attempts        *prometheus.CounterVec
	upstreamStatus  *prometheus.CounterVec
	attemptDuration prometheus.Histogram
	gateWait        prometheus.Histogram
	gateActive      prometheus.Gauge
	httpRequests    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolver_resolutions_total",
				Help: "Completed resolutions, labeled by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolver_attempts_total",
				Help: "Browser attempts, labeled by result (resolved, retry, stop, error).",
			},
			[]string{"result"},
		),
		upstreamStatus: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resolver_upstream_status_total",
				Help: "HTTP status of the initial navigation response per attempt.",
			},
			[]string{"code"},
		),
		attemptDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "resolver_attempt_duration_seconds",
				Help:    "Wall time of one navigate-and-extract attempt.",
				Buckets: []float64{1, 2, 4, 8, 12, 20, 30, 45},
			},
		),
		gateWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "resolver_gate_wait_seconds",
				Help:    "Time spent waiting for the concurrency gate.",
				Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
			},
		),
		gateActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "resolver_gate_active",
				Help: "Resolutions currently holding a gate slot.",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by route and code.",
			},
			[]string{"route", "code"},
		),
	}
	reg.MustRegister(
		m.resolutions,
		m.attempts,
		m.upstreamStatus,
		m.attemptDuration,
		m.gateWait,
		m.gateActive,
		m.httpRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveAttempt records one attempt's result label, upstream status and duration.
func (m *Metrics) ObserveAttempt(result string, status *int, d time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
	code := "none"
	if status != nil {
		code = strconv.Itoa(*status)
	}
	m.upstreamStatus.WithLabelValues(code).Inc()
	m.attemptDuration.Observe(d.Seconds())
}

// ObserveResolution records a finished resolution.
func (m *Metrics) ObserveResolution(method, outcome string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(method, outcome).Inc()
}

// ObserveGateWait records how long a request waited for the gate.
func (m *Metrics) ObserveGateWait(d time.Duration) {
	if m == nil {
		return
	}
	m.gateWait.Observe(d.Seconds())
}

// SetGateActive sets the number of held gate slots.
func (m *Metrics) SetGateActive(n int) {
	if m == nil {
		return
	}
	m.gateActive.Set(float64(n))
}

// ObserveHTTPRequest counts one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(route string, code int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}
