package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

type RemediationRuleRepo struct{ db *sql.DB }

func NewRemediationRuleRepo(db *sql.DB) repository.RemediationRuleRepository {
	return &RemediationRuleRepo{db}
}

const remediationRuleColumns = `
    id, name, trigger_type, trigger_conditions, action_type, action_params,
    mode, priority, cooldown_seconds, max_executions_per_hour,
    provider, service_type, is_active`

// scanRemediationRule decodes the JSONB condition and params columns into
// the tagged unions so a malformed stored rule is rejected here rather than
// during a poll cycle.
func scanRemediationRule(s interface {
	Scan(dest ...any) error
}) (*entity.RemediationRule, error) {
	var (
		r               entity.RemediationRule
		triggerJSON     []byte
		actionJSON      []byte
		cooldownSeconds int64
	)
	err := s.Scan(
		&r.ID, &r.Name, &r.TriggerType, &triggerJSON, &r.ActionType, &actionJSON,
		&r.Mode, &r.Priority, &cooldownSeconds, &r.MaxExecutionsPerHour,
		&r.Provider, &r.ServiceType, &r.IsActive,
	)
	if err != nil {
		return nil, err
	}
	r.Cooldown = time.Duration(cooldownSeconds) * time.Second
	if r.Trigger, err = entity.DecodeTriggerConditions(r.TriggerType, triggerJSON); err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	if r.Action, err = entity.DecodeActionParams(r.ActionType, actionJSON); err != nil {
		return nil, fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return &r, nil
}

func (r *RemediationRuleRepo) Get(ctx context.Context, id string) (*entity.RemediationRule, error) {
	const q = `
SELECT` + remediationRuleColumns + `
FROM remediation_rules
WHERE id = $1`

	rule, err := scanRemediationRule(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return rule, nil
}

func (r *RemediationRuleRepo) List(ctx context.Context) ([]*entity.RemediationRule, error) {
	const q = `
SELECT` + remediationRuleColumns + `
FROM remediation_rules
ORDER BY priority DESC, id`

	return r.list(ctx, q)
}

func (r *RemediationRuleRepo) ListActive(ctx context.Context) ([]*entity.RemediationRule, error) {
	const q = `
SELECT` + remediationRuleColumns + `
FROM remediation_rules
WHERE is_active = TRUE
ORDER BY priority DESC, id`

	return r.list(ctx, q)
}

func (r *RemediationRuleRepo) list(ctx context.Context, q string) ([]*entity.RemediationRule, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.RemediationRule, 0, 10)
	for rows.Next() {
		rule, err := scanRemediationRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *RemediationRuleRepo) Upsert(ctx context.Context, rule *entity.RemediationRule) error {
	const q = `
INSERT INTO remediation_rules (` + remediationRuleColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
    name                    = EXCLUDED.name,
    trigger_type            = EXCLUDED.trigger_type,
    trigger_conditions      = EXCLUDED.trigger_conditions,
    action_type             = EXCLUDED.action_type,
    action_params           = EXCLUDED.action_params,
    mode                    = EXCLUDED.mode,
    priority                = EXCLUDED.priority,
    cooldown_seconds        = EXCLUDED.cooldown_seconds,
    max_executions_per_hour = EXCLUDED.max_executions_per_hour,
    provider                = EXCLUDED.provider,
    service_type            = EXCLUDED.service_type,
    is_active               = EXCLUDED.is_active`

	triggerJSON, err := json.Marshal(rule.Trigger)
	if err != nil {
		return fmt.Errorf("encode trigger conditions: %w", err)
	}
	actionJSON, err := json.Marshal(rule.Action)
	if err != nil {
		return fmt.Errorf("encode action params: %w", err)
	}

	_, err = r.db.ExecContext(ctx, q,
		rule.ID, rule.Name, rule.TriggerType, triggerJSON, rule.ActionType, actionJSON,
		rule.Mode, rule.Priority, int64(rule.Cooldown/time.Second), rule.MaxExecutionsPerHour,
		rule.Provider, rule.ServiceType, rule.IsActive,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
