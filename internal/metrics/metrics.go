// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the API server
type Metrics struct {
	registry *prometheus.Registry

	RequestDuration   *prometheus.HistogramVec
	RequestsTotal     *prometheus.CounterVec
	LoginAttempts     *prometheus.CounterVec
	TokensRevoked     *prometheus.CounterVec
	DecisionsReviewed *prometheus.CounterVec
	PendingDecisions  prometheus.Gauge
}

// New registers collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "morningai_http_request_duration_seconds",
			Help:    "Latency of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "morningai_http_requests_total",
			Help: "Total HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "morningai_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		TokensRevoked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "morningai_tokens_revoked_total",
			Help: "Access tokens added to the blacklist",
		}, []string{"reason"}),
		DecisionsReviewed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "morningai_decisions_reviewed_total",
			Help: "Decisions moved out of pending, by resulting status",
		}, []string{"status"}),
		PendingDecisions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "morningai_pending_decisions",
			Help: "Decisions awaiting review at the last metrics read",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one finished HTTP request
func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	m.RequestDuration.WithLabelValues(method, route).Observe(seconds)
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
}
