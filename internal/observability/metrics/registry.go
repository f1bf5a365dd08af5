// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds.
	// Buckets cover fast responses (5-25ms), normal responses (50-250ms)
	// and slow responses (500ms-10s) so p95 and p99 stay accurate.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Provider metrics track per-provider traffic and health state
var (
	// ProviderOutcomesTotal counts reported request outcomes per provider
	ProviderOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_outcomes_total",
			Help: "Total number of reported provider request outcomes",
		},
		[]string{"provider", "service_type", "result"},
	)

	// ProviderHealthScore exposes the current health score per provider
	ProviderHealthScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "provider_health_score",
			Help: "Current provider health score (0-100)",
		},
		[]string{"provider", "service_type"},
	)

	// ProviderCooldownsTotal counts rate-limit cooldowns applied per provider
	ProviderCooldownsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_cooldowns_total",
			Help: "Total number of rate-limit cooldowns applied",
		},
		[]string{"provider", "service_type"},
	)

	// RoutingDecisionsTotal counts routing orders served by strategy
	RoutingDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_decisions_total",
			Help: "Total number of routing orders served",
		},
		[]string{"service_type", "strategy"},
	)

	// ErrorPatternsLearned counts newly learned error pattern signatures
	ErrorPatternsLearned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "error_patterns_learned_total",
			Help: "Total number of newly learned error pattern signatures",
		},
		[]string{"provider", "pattern_type"},
	)
)

// Remediation metrics track the self-healing control loop
var (
	// RemediationExecutionsTotal counts remediation executions by terminal status
	RemediationExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remediation_executions_total",
			Help: "Total number of remediation executions by terminal status",
		},
		[]string{"action_type", "status"},
	)

	// RemediationActionDuration measures remediation action execution time
	RemediationActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remediation_action_duration_seconds",
			Help:    "Time taken to execute a remediation action",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"action_type"},
	)

	// RemediationCycleDuration measures one full evaluation cycle
	RemediationCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "remediation_cycle_duration_seconds",
			Help:    "Time taken for one remediation evaluation cycle",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// QuotaAdmissionsTotal counts quota admission decisions
	QuotaAdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_admissions_total",
			Help: "Total number of quota admission decisions",
		},
		[]string{"model_type", "decision"},
	)

	// SimulationScore exposes the overall score of the latest completed simulation
	SimulationScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "failure_simulation_score",
			Help: "Overall score of the latest completed failure simulation",
		},
		[]string{"provider", "service_type"},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
