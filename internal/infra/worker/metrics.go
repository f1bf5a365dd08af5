package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"provider-mesh/internal/pkg/config"
)

// WorkerMetrics provides Prometheus metrics for the remediation worker.
// It embeds the standard ConfigMetrics for configuration monitoring and adds
// worker-specific metrics for remediation cycle tracking.
//
// Embedded metrics (from ConfigMetrics):
//   - worker_config_load_timestamp: Unix timestamp of last configuration load
//   - worker_config_validation_errors_total: Total validation errors by field
//   - worker_config_fallbacks_total: Total fallback operations by field
//   - worker_config_fallback_active: 1 if any fallback active, 0 otherwise
//
// Worker-specific metrics:
//   - worker_remediation_cycle_runs_total: Total remediation cycles by status (success/failure)
//   - worker_remediation_cycle_duration_seconds: Duration histogram of cycle execution
//   - worker_remediation_actions_executed_total: Total healing actions executed across cycles
//   - worker_remediation_cycle_last_success_timestamp: Unix timestamp of last successful cycle
type WorkerMetrics struct {
	*config.ConfigMetrics

	// CycleRunsTotal counts the total number of remediation cycles.
	// Type: Counter
	// Labels: status (success, failure)
	CycleRunsTotal *prometheus.CounterVec

	// CycleDurationSeconds measures the duration of a remediation cycle.
	// Type: Histogram
	// Buckets: 50ms to 2m (a cycle is a handful of queries plus any triggered actions)
	CycleDurationSeconds prometheus.Histogram

	// ActionsExecutedTotal counts the healing actions executed per cycle.
	// Type: Counter
	ActionsExecutedTotal prometheus.Counter

	// CycleLastSuccessTimestamp records the Unix timestamp of the last successful cycle.
	// Type: Gauge
	CycleLastSuccessTimestamp prometheus.Gauge
}

// NewWorkerMetrics creates a new WorkerMetrics instance with all metrics initialized.
// Metrics are created and auto-registered via promauto.
func NewWorkerMetrics() *WorkerMetrics {
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetrics("worker"),

		CycleRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_remediation_cycle_runs_total",
			Help: "Total number of remediation cycles by status (success/failure)",
		}, []string{"status"}),

		CycleDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "worker_remediation_cycle_duration_seconds",
			Help:    "Duration of remediation cycle execution in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 120},
		}),

		ActionsExecutedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "worker_remediation_actions_executed_total",
			Help: "Total number of healing actions executed across all remediation cycles",
		}),

		CycleLastSuccessTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "worker_remediation_cycle_last_success_timestamp",
			Help: "Unix timestamp of the last successful remediation cycle",
		}),
	}
}

// MustRegister is a no-op method for API compatibility.
// Metrics are automatically registered via promauto when created in NewWorkerMetrics.
func (m *WorkerMetrics) MustRegister() {
	// No-op: metrics are auto-registered via promauto
}

// RecordCycleRun increments the cycle counter for the given status.
// Status should be either "success" or "failure".
func (m *WorkerMetrics) RecordCycleRun(status string) {
	m.CycleRunsTotal.WithLabelValues(status).Inc()
}

// RecordCycleDuration observes the duration of a remediation cycle in seconds.
func (m *WorkerMetrics) RecordCycleDuration(seconds float64) {
	m.CycleDurationSeconds.Observe(seconds)
}

// RecordActionsExecuted adds the number of healing actions executed in a cycle.
func (m *WorkerMetrics) RecordActionsExecuted(count int) {
	m.ActionsExecutedTotal.Add(float64(count))
}

// RecordLastSuccess records the current time as the last successful cycle completion.
func (m *WorkerMetrics) RecordLastSuccess() {
	m.CycleLastSuccessTimestamp.SetToCurrentTime()
}
