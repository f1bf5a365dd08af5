package worker

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewWorkerMetrics(t *testing.T) {
	// Verify that globalTestMetrics (created via NewWorkerMetrics) is initialized correctly
	// We use the global instance to avoid duplicate Prometheus registration
	metrics := globalTestMetrics

	if metrics == nil {
		t.Fatal("NewWorkerMetrics returned nil")
	}

	if metrics.ConfigMetrics == nil {
		t.Error("ConfigMetrics is nil")
	}

	if metrics.CycleRunsTotal == nil {
		t.Error("CycleRunsTotal is nil")
	}

	if metrics.CycleDurationSeconds == nil {
		t.Error("CycleDurationSeconds is nil")
	}

	if metrics.ActionsExecutedTotal == nil {
		t.Error("ActionsExecutedTotal is nil")
	}

	if metrics.CycleLastSuccessTimestamp == nil {
		t.Error("CycleLastSuccessTimestamp is nil")
	}

	// Should not panic when calling MustRegister (metrics are auto-registered via promauto)
	metrics.MustRegister()
}

func TestWorkerMetrics_RecordCycleRun(t *testing.T) {
	// Create a custom registry for isolated testing
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_worker_remediation_cycle_runs_total",
		Help: "Test counter",
	}, []string{"status"})
	reg.MustRegister(counter)

	metrics := &WorkerMetrics{
		CycleRunsTotal: counter,
	}

	metrics.RecordCycleRun("success")
	metrics.RecordCycleRun("success")
	metrics.RecordCycleRun("failure")

	if got := testutil.ToFloat64(counter.WithLabelValues("success")); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("failure")); got != 1 {
		t.Errorf("failure count = %v, want 1", got)
	}
}

func TestWorkerMetrics_RecordCycleDuration(t *testing.T) {
	reg := prometheus.NewRegistry()

	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_worker_remediation_cycle_duration_seconds",
		Help:    "Test histogram",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 120},
	})
	reg.MustRegister(histogram)

	metrics := &WorkerMetrics{
		CycleDurationSeconds: histogram,
	}

	metrics.RecordCycleDuration(0.2)
	metrics.RecordCycleDuration(1.5)

	if got := testutil.CollectAndCount(histogram); got != 1 {
		t.Errorf("collected metric families = %d, want 1", got)
	}
}

func TestWorkerMetrics_RecordActionsExecuted(t *testing.T) {
	reg := prometheus.NewRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_worker_remediation_actions_executed_total",
		Help: "Test counter",
	})
	reg.MustRegister(counter)

	metrics := &WorkerMetrics{
		ActionsExecutedTotal: counter,
	}

	metrics.RecordActionsExecuted(3)
	metrics.RecordActionsExecuted(2)

	if got := testutil.ToFloat64(counter); got != 5 {
		t.Errorf("actions executed = %v, want 5", got)
	}
}

func TestWorkerMetrics_RecordLastSuccess(t *testing.T) {
	reg := prometheus.NewRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_worker_remediation_cycle_last_success_timestamp",
		Help: "Test gauge",
	})
	reg.MustRegister(gauge)

	metrics := &WorkerMetrics{
		CycleLastSuccessTimestamp: gauge,
	}

	metrics.RecordLastSuccess()

	if got := testutil.ToFloat64(gauge); got <= 0 {
		t.Errorf("last success timestamp = %v, want > 0", got)
	}
}
