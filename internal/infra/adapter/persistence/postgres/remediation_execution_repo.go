package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

type RemediationExecutionRepo struct{ db *sql.DB }

func NewRemediationExecutionRepo(db *sql.DB) repository.RemediationExecutionRepository {
	return &RemediationExecutionRepo{db}
}

const remediationExecutionColumns = `
    id, rule_id, provider, service_type,
    failure_detected_at, remediation_started_at, remediation_completed_at, recovery_confirmed_at,
    trigger_details, action_taken, status, was_successful,
    mttd_seconds, mttr_seconds, affected_requests, recovered_requests, error_message`

func scanRemediationExecution(s interface {
	Scan(dest ...any) error
}) (*entity.RemediationExecution, error) {
	var e entity.RemediationExecution
	err := s.Scan(
		&e.ID, &e.RuleID, &e.Provider, &e.ServiceType,
		&e.FailureDetectedAt, &e.RemediationStartedAt, &e.RemediationCompletedAt, &e.RecoveryConfirmedAt,
		&e.TriggerDetails, &e.ActionTaken, &e.Status, &e.WasSuccessful,
		&e.MTTDSeconds, &e.MTTRSeconds, &e.AffectedRequests, &e.RecoveredRequests, &e.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *RemediationExecutionRepo) Create(ctx context.Context, e *entity.RemediationExecution) error {
	const q = `
INSERT INTO remediation_executions (` + remediationExecutionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.RuleID, e.Provider, e.ServiceType,
		e.FailureDetectedAt, e.RemediationStartedAt, e.RemediationCompletedAt, e.RecoveryConfirmedAt,
		e.TriggerDetails, e.ActionTaken, e.Status, e.WasSuccessful,
		e.MTTDSeconds, e.MTTRSeconds, e.AffectedRequests, e.RecoveredRequests, e.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *RemediationExecutionRepo) Update(ctx context.Context, e *entity.RemediationExecution) error {
	const q = `
UPDATE remediation_executions SET
    failure_detected_at      = $2,
    remediation_started_at   = $3,
    remediation_completed_at = $4,
    recovery_confirmed_at    = $5,
    trigger_details          = $6,
    action_taken             = $7,
    status                   = $8,
    was_successful           = $9,
    mttd_seconds             = $10,
    mttr_seconds             = $11,
    affected_requests        = $12,
    recovered_requests       = $13,
    error_message            = $14
WHERE id = $1`

	res, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.FailureDetectedAt, e.RemediationStartedAt, e.RemediationCompletedAt, e.RecoveryConfirmedAt,
		e.TriggerDetails, e.ActionTaken, e.Status, e.WasSuccessful,
		e.MTTDSeconds, e.MTTRSeconds, e.AffectedRequests, e.RecoveredRequests, e.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (r *RemediationExecutionRepo) Get(ctx context.Context, id string) (*entity.RemediationExecution, error) {
	const q = `
SELECT` + remediationExecutionColumns + `
FROM remediation_executions
WHERE id = $1`

	e, err := scanRemediationExecution(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return e, nil
}

func (r *RemediationExecutionRepo) LastByRule(ctx context.Context, ruleID string) (*entity.RemediationExecution, error) {
	const q = `
SELECT` + remediationExecutionColumns + `
FROM remediation_executions
WHERE rule_id = $1
ORDER BY remediation_started_at DESC
LIMIT 1`

	e, err := scanRemediationExecution(r.db.QueryRowContext(ctx, q, ruleID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LastByRule: %w", err)
	}
	return e, nil
}

func (r *RemediationExecutionRepo) CountByRuleSince(ctx context.Context, ruleID string, since time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
FROM remediation_executions
WHERE rule_id = $1 AND remediation_started_at >= $2`

	var n int
	if err := r.db.QueryRowContext(ctx, q, ruleID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountByRuleSince: %w", err)
	}
	return n, nil
}

func (r *RemediationExecutionRepo) ListBetween(ctx context.Context, from, to time.Time) ([]*entity.RemediationExecution, error) {
	const q = `
SELECT` + remediationExecutionColumns + `
FROM remediation_executions
WHERE remediation_started_at >= $1 AND remediation_started_at < $2
ORDER BY remediation_started_at ASC`

	return r.list(ctx, q, from, to)
}

func (r *RemediationExecutionRepo) ListPending(ctx context.Context) ([]*entity.RemediationExecution, error) {
	const q = `
SELECT` + remediationExecutionColumns + `
FROM remediation_executions
WHERE status = $1
ORDER BY remediation_started_at ASC`

	return r.list(ctx, q, entity.ExecutionPending)
}

func (r *RemediationExecutionRepo) ListUnconfirmed(ctx context.Context) ([]*entity.RemediationExecution, error) {
	const q = `
SELECT` + remediationExecutionColumns + `
FROM remediation_executions
WHERE status = $1 AND was_successful = TRUE AND recovery_confirmed_at IS NULL
ORDER BY remediation_started_at ASC`

	return r.list(ctx, q, entity.ExecutionSuccess)
}

func (r *RemediationExecutionRepo) list(ctx context.Context, q string, args ...any) ([]*entity.RemediationExecution, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.RemediationExecution, 0, 20)
	for rows.Next() {
		e, err := scanRemediationExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
