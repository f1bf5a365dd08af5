package metrics

import (
	"time"
)

// RecordOutcome records a reported provider request outcome.
// Result is either "success" or "failure".
func RecordOutcome(provider, serviceType string, success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	ProviderOutcomesTotal.WithLabelValues(provider, serviceType, result).Inc()
}

// SetHealthScore updates the health score gauge for a provider.
func SetHealthScore(provider, serviceType string, score float64) {
	ProviderHealthScore.WithLabelValues(provider, serviceType).Set(score)
}

// RecordCooldown records a rate-limit cooldown applied to a provider.
func RecordCooldown(provider, serviceType string) {
	ProviderCooldownsTotal.WithLabelValues(provider, serviceType).Inc()
}

// RecordRoutingDecision records a routing order served for a service type.
// Strategy is "smart" or "quality".
func RecordRoutingDecision(serviceType, strategy string) {
	RoutingDecisionsTotal.WithLabelValues(serviceType, strategy).Inc()
}

// RecordPatternLearned records a newly learned error pattern signature.
func RecordPatternLearned(provider, patternType string) {
	ErrorPatternsLearned.WithLabelValues(provider, patternType).Inc()
}

// RecordRemediation records a remediation execution reaching a terminal
// status, along with the time the action took.
func RecordRemediation(actionType, status string, duration time.Duration) {
	RemediationExecutionsTotal.WithLabelValues(actionType, status).Inc()
	RemediationActionDuration.WithLabelValues(actionType).Observe(duration.Seconds())
}

// RecordRemediationCycle records the duration of one evaluation cycle.
func RecordRemediationCycle(duration time.Duration) {
	RemediationCycleDuration.Observe(duration.Seconds())
}

// RecordAdmission records a quota admission decision.
// Decision is "accepted", "throttled", or "rejected".
func RecordAdmission(modelType, decision string) {
	QuotaAdmissionsTotal.WithLabelValues(modelType, decision).Inc()
}

// SetSimulationScore exposes the overall score of a completed simulation.
func SetSimulationScore(provider, serviceType string, score float64) {
	SimulationScore.WithLabelValues(provider, serviceType).Set(score)
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "select_metrics", "upsert_pattern").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
