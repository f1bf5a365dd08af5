package repository

import (
	"context"
	"time"

	"provider-mesh/internal/domain/entity"
)

// RemediationRuleRepository persists the rule table driving the control loop.
type RemediationRuleRepository interface {
	// Get returns the rule, or nil if unknown.
	Get(ctx context.Context, id string) (*entity.RemediationRule, error)
	List(ctx context.Context) ([]*entity.RemediationRule, error)
	ListActive(ctx context.Context) ([]*entity.RemediationRule, error)
	Upsert(ctx context.Context, r *entity.RemediationRule) error
}

// RemediationExecutionRepository persists per-firing execution records.
type RemediationExecutionRepository interface {
	Create(ctx context.Context, e *entity.RemediationExecution) error
	Update(ctx context.Context, e *entity.RemediationExecution) error
	// Get returns the execution, or nil if unknown.
	Get(ctx context.Context, id string) (*entity.RemediationExecution, error)
	// LastByRule returns the most recent execution for the rule, or nil.
	LastByRule(ctx context.Context, ruleID string) (*entity.RemediationExecution, error)
	// CountByRuleSince counts executions for the rule started at or after
	// the given time. Used for the per-hour execution cap.
	CountByRuleSince(ctx context.Context, ruleID string, since time.Time) (int, error)
	// ListBetween returns executions started within [from, to), oldest first.
	ListBetween(ctx context.Context, from, to time.Time) ([]*entity.RemediationExecution, error)
	ListPending(ctx context.Context) ([]*entity.RemediationExecution, error)
	// ListUnconfirmed returns successful executions whose recovery has not
	// been confirmed yet, oldest first.
	ListUnconfirmed(ctx context.Context) ([]*entity.RemediationExecution, error)
}

// HealingLogRepository is the append-only audit log. Callers treat failures
// on this path as non-fatal.
type HealingLogRepository interface {
	Append(ctx context.Context, e *entity.HealingActionEntry) error
	ListSince(ctx context.Context, since time.Time) ([]*entity.HealingActionEntry, error)
}
