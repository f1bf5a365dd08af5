// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count)
//   - Provider metrics (outcomes, health scores, cooldowns)
//   - Remediation control-loop metrics (executions, cycle duration)
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint.
//
// Example usage:
//
//	import "provider-mesh/internal/observability/metrics"
//
//	func reportOutcome(provider, serviceType string, success bool) {
//	    metrics.RecordOutcome(provider, serviceType, success)
//	}
package metrics
