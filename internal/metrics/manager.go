package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the Prometheus registry and the metrics the server
// records.
type Manager struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	shareOpsTotal *prometheus.CounterVec
	uploadsTotal  *prometheus.CounterVec
	authAttempts  *prometheus.CounterVec
}

// NewManager creates a manager with all metrics registered.
func NewManager() *Manager {
	m := &Manager{registry: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audiodrop",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "audiodrop",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	m.shareOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audiodrop",
			Subsystem: "share",
			Name:      "operations_total",
			Help:      "Total number of share link operations",
		},
		[]string{"operation", "outcome"},
	)

	m.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audiodrop",
			Subsystem: "storage",
			Name:      "uploads_total",
			Help:      "Total number of upload attempts",
		},
		[]string{"outcome"},
	)

	m.authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "audiodrop",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts",
		},
		[]string{"outcome"},
	)

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.shareOpsTotal,
		m.uploadsTotal,
		m.authAttempts,
	)

	return m
}

// Handler exposes the registry in Prometheus text format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func (m *Manager) RecordHTTPRequest(method, path, status string, seconds float64) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(seconds)
}

// RecordShareOp records a share operation outcome (created, resolved,
// expired, deleted, not_found).
func (m *Manager) RecordShareOp(operation, outcome string) {
	m.shareOpsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordUpload records an upload outcome (stored, skipped, failed).
func (m *Manager) RecordUpload(outcome string) {
	m.uploadsTotal.WithLabelValues(outcome).Inc()
}

// RecordLogin records a login outcome (viewer, editor, failed).
func (m *Manager) RecordLogin(outcome string) {
	m.authAttempts.WithLabelValues(outcome).Inc()
}
