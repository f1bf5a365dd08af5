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

type TierQuotaRepo struct{ db *sql.DB }

func NewTierQuotaRepo(db *sql.DB) repository.TierQuotaRepository {
	return &TierQuotaRepo{db}
}

// The tier table is a single-row config; id is pinned to 1.
func (r *TierQuotaRepo) GetTierConfig(ctx context.Context) (*entity.TierQuotaConfig, error) {
	const q = `
SELECT tier, model_limits, monthly_spend_limit
FROM runway_tier_config
WHERE id = 1`

	var (
		c          entity.TierQuotaConfig
		limitsJSON []byte
	)
	err := r.db.QueryRowContext(ctx, q).Scan(&c.Tier, &limitsJSON, &c.MonthlySpendLimit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetTierConfig: %w", err)
	}
	if err := json.Unmarshal(limitsJSON, &c.ModelLimits); err != nil {
		return nil, fmt.Errorf("decode model limits: %w", err)
	}
	return &c, nil
}

func (r *TierQuotaRepo) SetTierConfig(ctx context.Context, c *entity.TierQuotaConfig) error {
	const q = `
INSERT INTO runway_tier_config (id, tier, model_limits, monthly_spend_limit)
VALUES (1, $1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
    tier                = EXCLUDED.tier,
    model_limits        = EXCLUDED.model_limits,
    monthly_spend_limit = EXCLUDED.monthly_spend_limit`

	limitsJSON, err := json.Marshal(c.ModelLimits)
	if err != nil {
		return fmt.Errorf("encode model limits: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, q, c.Tier, limitsJSON, c.MonthlySpendLimit); err != nil {
		return fmt.Errorf("SetTierConfig: %w", err)
	}
	return nil
}

func (r *TierQuotaRepo) CountActiveTasks(ctx context.Context, modelType string) (int, error) {
	// Throttled rows are queued, not in flight; they must not hold a slot.
	const q = `
SELECT COUNT(*)
FROM runway_concurrent_tasks
WHERE model_type = $1 AND status IN ('pending', 'running')`

	var n int
	if err := r.db.QueryRowContext(ctx, q, modelType).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountActiveTasks: %w", err)
	}
	return n, nil
}

func (r *TierQuotaRepo) GetTask(ctx context.Context, taskID string) (*entity.ConcurrentTask, error) {
	const q = `
SELECT task_id, model_type, campaign_id, content_id, status, last_checked_at, created_at
FROM runway_concurrent_tasks
WHERE task_id = $1`

	var t entity.ConcurrentTask
	err := r.db.QueryRowContext(ctx, q, taskID).Scan(
		&t.TaskID, &t.ModelType, &t.CampaignID, &t.ContentID, &t.Status, &t.LastCheckedAt, &t.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetTask: %w", err)
	}
	return &t, nil
}

func (r *TierQuotaRepo) InsertTask(ctx context.Context, t *entity.ConcurrentTask) error {
	const q = `
INSERT INTO runway_concurrent_tasks (task_id, model_type, campaign_id, content_id, status, last_checked_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := r.db.ExecContext(ctx, q,
		t.TaskID, t.ModelType, t.CampaignID, t.ContentID, t.Status, t.LastCheckedAt, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("InsertTask: %w", err)
	}
	return nil
}

func (r *TierQuotaRepo) UpdateTaskStatus(ctx context.Context, taskID string, status entity.TaskStatus, at time.Time) error {
	const q = `
UPDATE runway_concurrent_tasks SET status = $2, last_checked_at = $3
WHERE task_id = $1`

	res, err := r.db.ExecContext(ctx, q, taskID, status, at)
	if err != nil {
		return fmt.Errorf("UpdateTaskStatus: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("UpdateTaskStatus: no rows affected")
	}
	return nil
}

func (r *TierQuotaRepo) DeleteTask(ctx context.Context, taskID string) error {
	const q = `DELETE FROM runway_concurrent_tasks WHERE task_id = $1`

	if _, err := r.db.ExecContext(ctx, q, taskID); err != nil {
		return fmt.Errorf("DeleteTask: %w", err)
	}
	return nil
}

func (r *TierQuotaRepo) UsageCountSince(ctx context.Context, modelType string, since time.Time) (int, error) {
	const q = `
SELECT COUNT(*)
FROM runway_api_usage
WHERE model_type = $1 AND created_at >= $2`

	var n int
	if err := r.db.QueryRowContext(ctx, q, modelType, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("UsageCountSince: %w", err)
	}
	return n, nil
}

func (r *TierQuotaRepo) InsertUsage(ctx context.Context, u *entity.APIUsageRecord) error {
	const q = `
INSERT INTO runway_api_usage (model_type, task_id, created_at)
VALUES ($1,$2,$3)
RETURNING id`

	err := r.db.QueryRowContext(ctx, q, u.ModelType, u.TaskID, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("InsertUsage: %w", err)
	}
	return nil
}
