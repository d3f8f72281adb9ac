// Package metrics provides Prometheus metrics for the TypeShield service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "typeshield"

// Manager owns the metric instruments and the registry they live in.
type Manager struct {
	registry *prometheus.Registry

	// Authentication outcomes
	loginAttempts   *prometheus.CounterVec
	guardRejections *prometheus.CounterVec
	similarityScore prometheus.Histogram
	enrollments     prometheus.Counter
	replayRejects   prometheus.Counter

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Audit pipeline
	auditQueueSize     prometheus.Gauge
	auditQueueCapacity prometheus.Gauge
	auditQueueDrops    prometheus.Counter
	auditWrites        prometheus.Counter
	auditWriteErrors   prometheus.Counter

	// Sessions
	activeSessions prometheus.Gauge
}

func newManager() *Manager {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Manager{
		registry: reg,

		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome (success, mismatch, bad_credentials, invalid_payload).",
		}, []string{"outcome"}),
		guardRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_rejections_total",
			Help:      "Behavioural rejections by stage (key_count, tempo, threshold).",
		}, []string{"stage"}),
		similarityScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "similarity_score",
			Help:      "Distribution of combined similarity scores for scored attempts.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		enrollments: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollments_total",
			Help:      "Completed registrations.",
		}),
		replayRejects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replay_rejections_total",
			Help:      "Attempts rejected for reusing a capture nonce.",
		}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint, method and status code.",
		}, []string{"endpoint", "method", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"endpoint", "method"}),

		auditQueueSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_queue_size",
			Help:      "Attempt records waiting to be written.",
		}),
		auditQueueCapacity: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audit_queue_capacity",
			Help:      "Configured audit queue bound.",
		}),
		auditQueueDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_queue_drops_total",
			Help:      "Records that fell back to a synchronous write on backpressure.",
		}),
		auditWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_writes_total",
			Help:      "Attempt records persisted by the writer pool.",
		}),
		auditWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_errors_total",
			Help:      "Failed attempt-record writes.",
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently alive in the session store.",
		}),
	}
}

var defaultManager = newManager()

// GetRegistry exposes the registry for the /healthz metrics handler.
func GetRegistry() *prometheus.Registry {
	return defaultManager.registry
}

// Package-level helpers so call sites stay one-liners.

func RecordLoginAttempt(outcome string) {
	defaultManager.loginAttempts.WithLabelValues(outcome).Inc()
}

func RecordGuardRejection(stage string) {
	defaultManager.guardRejections.WithLabelValues(stage).Inc()
}

func RecordSimilarityScore(score float64) { defaultManager.similarityScore.Observe(score) }
func RecordEnrollment()                   { defaultManager.enrollments.Inc() }
func RecordReplayRejection()              { defaultManager.replayRejects.Inc() }

func RecordHTTPRequest(endpoint, method, status string) {
	defaultManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method string, durationMs float64) {
	defaultManager.httpRequestDuration.WithLabelValues(endpoint, method).Observe(durationMs)
}

func UpdateAuditQueueSize(n int)     { defaultManager.auditQueueSize.Set(float64(n)) }
func UpdateAuditQueueCapacity(n int) { defaultManager.auditQueueCapacity.Set(float64(n)) }
func RecordAuditQueueDrop()          { defaultManager.auditQueueDrops.Inc() }
func RecordAuditWrite()              { defaultManager.auditWrites.Inc() }
func RecordAuditWriteError()         { defaultManager.auditWriteErrors.Inc() }

func UpdateActiveSessions(n int) { defaultManager.activeSessions.Set(float64(n)) }
