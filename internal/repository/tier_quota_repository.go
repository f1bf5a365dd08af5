package repository

import (
	"context"
	"time"

	"provider-mesh/internal/domain/entity"
)

// TierQuotaRepository persists the capacity-managed provider family's tier
// table, ephemeral in-flight task rows and durable usage rows.
type TierQuotaRepository interface {
	// GetTierConfig returns the active tier table, or nil if unset.
	GetTierConfig(ctx context.Context) (*entity.TierQuotaConfig, error)
	SetTierConfig(ctx context.Context, c *entity.TierQuotaConfig) error

	// CountActiveTasks counts pending/running task rows for the model.
	// Throttled rows are queued and hold no slot; terminal tasks are
	// deleted and never counted.
	CountActiveTasks(ctx context.Context, modelType string) (int, error)
	// GetTask returns the in-flight task, or nil if unknown.
	GetTask(ctx context.Context, taskID string) (*entity.ConcurrentTask, error)
	InsertTask(ctx context.Context, t *entity.ConcurrentTask) error
	UpdateTaskStatus(ctx context.Context, taskID string, status entity.TaskStatus, at time.Time) error
	DeleteTask(ctx context.Context, taskID string) error

	// UsageCountSince counts usage rows for the model created at or after
	// the given time (rolling-24h daily accounting).
	UsageCountSince(ctx context.Context, modelType string, since time.Time) (int, error)
	InsertUsage(ctx context.Context, u *entity.APIUsageRecord) error
}
