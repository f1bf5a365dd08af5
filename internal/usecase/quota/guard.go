// Package quota enforces the capacity-managed provider family's admission
// limits, independent of provider health.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/observability/metrics"
	"provider-mesh/internal/repository"
	"provider-mesh/pkg/clock"
)

// dailyWindow is the rolling usage-accounting window.
const dailyWindow = 24 * time.Hour

// Guard performs admission checks and manages the task lifecycle.
//
// The check-then-register sequence is serialized per model so two callers
// cannot both pass the ceiling check before either registers.
type Guard struct {
	Repo   repository.TierQuotaRepository
	Clock  clock.Clock
	Logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGuard wires a Guard with its store.
func NewGuard(repo repository.TierQuotaRepository, clk clock.Clock, logger *slog.Logger) *Guard {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		Repo:   repo,
		Clock:  clk,
		Logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (g *Guard) modelLock(modelType string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[modelType]
	if !ok {
		l = &sync.Mutex{}
		g.locks[modelType] = l
	}
	return l
}

// CanSubmitTask is the pure admission check. Daily quota exhaustion is a
// hard reject; a full concurrency ceiling admits with willBeThrottled set.
func (g *Guard) CanSubmitTask(ctx context.Context, modelType string) (*entity.AdmissionDecision, error) {
	l := g.modelLock(modelType)
	l.Lock()
	defer l.Unlock()
	return g.checkLocked(ctx, modelType)
}

func (g *Guard) checkLocked(ctx context.Context, modelType string) (*entity.AdmissionDecision, error) {
	cfg, err := g.Repo.GetTierConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tier config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("tier config: %w", entity.ErrNotFound)
	}
	limit, err := cfg.LimitFor(modelType)
	if err != nil {
		return nil, err
	}

	now := g.Clock.Now()
	usage, err := g.Repo.UsageCountSince(ctx, modelType, now.Add(-dailyWindow))
	if err != nil {
		return nil, fmt.Errorf("count daily usage: %w", err)
	}
	if usage >= limit.DailyLimit {
		metrics.RecordAdmission(modelType, "rejected")
		return &entity.AdmissionDecision{
			CanSubmit: false,
			Reason:    entity.ReasonDailyLimit,
		}, nil
	}

	inflight, err := g.Repo.CountActiveTasks(ctx, modelType)
	if err != nil {
		return nil, fmt.Errorf("count active tasks: %w", err)
	}
	if inflight >= limit.MaxConcurrent {
		metrics.RecordAdmission(modelType, "throttled")
		return &entity.AdmissionDecision{
			CanSubmit:       true,
			WillBeThrottled: true,
			Reason:          entity.ReasonThrottled,
		}, nil
	}

	metrics.RecordAdmission(modelType, "accepted")
	return &entity.AdmissionDecision{CanSubmit: true}, nil
}

// RegisterTask re-runs the admission check and, when admitted, inserts the
// in-flight task row and its durable usage row under the same per-model lock.
// A throttled admission registers the task in throttled state; the caller
// queues it instead of dispatching.
func (g *Guard) RegisterTask(ctx context.Context, taskID, modelType, campaignID, contentID string) (*entity.AdmissionDecision, error) {
	if taskID == "" {
		return nil, &entity.ValidationError{Field: "taskId", Message: "is required"}
	}
	if modelType == "" {
		return nil, &entity.ValidationError{Field: "modelType", Message: "is required"}
	}

	l := g.modelLock(modelType)
	l.Lock()
	defer l.Unlock()

	decision, err := g.checkLocked(ctx, modelType)
	if err != nil {
		return nil, err
	}
	if !decision.CanSubmit {
		return decision, nil
	}

	now := g.Clock.Now()
	status := entity.TaskPending
	if decision.WillBeThrottled {
		status = entity.TaskThrottled
	}
	task := &entity.ConcurrentTask{
		TaskID:        taskID,
		ModelType:     modelType,
		CampaignID:    campaignID,
		ContentID:     contentID,
		Status:        status,
		LastCheckedAt: now,
		CreatedAt:     now,
	}
	if err := g.Repo.InsertTask(ctx, task); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	if err := g.Repo.InsertUsage(ctx, &entity.APIUsageRecord{
		ModelType: modelType,
		TaskID:    taskID,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("insert usage: %w", err)
	}

	g.Logger.Info("task registered",
		slog.String("task_id", taskID),
		slog.String("model_type", modelType),
		slog.String("status", string(status)))
	return decision, nil
}

// UpdateTaskStatus advances the task lifecycle. A terminal status deletes the
// task row, freeing the concurrency slot; the usage row stays for quota
// accounting.
func (g *Guard) UpdateTaskStatus(ctx context.Context, taskID string, status entity.TaskStatus) error {
	task, err := g.Repo.GetTask(ctx, taskID)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return fmt.Errorf("task %q: %w", taskID, entity.ErrNotFound)
	}

	if status.Terminal() {
		if err := g.Repo.DeleteTask(ctx, taskID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		g.Logger.Info("task finished",
			slog.String("task_id", taskID),
			slog.String("status", string(status)))
		return nil
	}
	if err := g.Repo.UpdateTaskStatus(ctx, taskID, status, g.Clock.Now()); err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

// GetTask returns the in-flight task row, or nil once it has finished.
func (g *Guard) GetTask(ctx context.Context, taskID string) (*entity.ConcurrentTask, error) {
	return g.Repo.GetTask(ctx, taskID)
}

// SetTier rewrites the tier table. Takes effect on the next admission check;
// in-flight tasks are not retroactively affected.
func (g *Guard) SetTier(ctx context.Context, cfg *entity.TierQuotaConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := g.Repo.SetTierConfig(ctx, cfg); err != nil {
		return fmt.Errorf("set tier config: %w", err)
	}
	g.Logger.Info("tier config updated", slog.Int("tier", int(cfg.Tier)))
	return nil
}
