package entity

import "time"

// HealingAction names an audit entry in the healing actions log.
type HealingAction string

const (
	HealingPriorityAdjusted    HealingAction = "priority_adjusted"
	HealingRateLimitCooldown   HealingAction = "rate_limit_cooldown"
	HealingHardFailureEscalate HealingAction = "hard_failure_escalated"
	HealingPatternLearned      HealingAction = "error_pattern_learned"
	HealingRuleExecuted        HealingAction = "remediation_executed"
)

// HealingActionEntry is one append-only audit row. Writes on this path are
// best-effort: a persistence hiccup in observability must never block the
// hot request path.
type HealingActionEntry struct {
	ID          int64
	Provider    string
	ServiceType ServiceType
	Action      HealingAction
	Detail      string
	CreatedAt   time.Time
}
