// Package remediation runs the rule-driven self-healing control loop.
//
// A periodic poll evaluates active rules against every matching provider.
// Each (rule, provider) pair is independent: evaluation reads the provider's
// own rows and an action mutates only that provider's metrics, so pairs are
// parallelized across providers within a cycle. Cycles themselves never
// overlap.
package remediation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/observability/metrics"
	"provider-mesh/internal/observability/slo"
	"provider-mesh/internal/repository"
	"provider-mesh/internal/resilience/circuitbreaker"
	"provider-mesh/pkg/clock"
)

// Loop defaults, overridable through the Engine fields before Start.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultMaxParallel  = 8
)

// Engine evaluates remediation rules and executes or queues their actions.
type Engine struct {
	Rules      repository.RemediationRuleRepository
	Executions repository.RemediationExecutionRepository
	Metrics    repository.ProviderMetricsRepository
	Requests   repository.RequestLogRepository
	Healing    repository.HealingLogRepository
	Router     ProviderRanker
	Notifier   AdminNotifier
	Requeuer   ContentRequeuer
	Clock      clock.Clock
	Logger     *slog.Logger

	PollInterval time.Duration
	MaxParallel  int

	notifyBreaker *circuitbreaker.CircuitBreaker
	cycleMu       sync.Mutex
}

// NewEngine wires an Engine with its dependencies.
func NewEngine(
	rules repository.RemediationRuleRepository,
	executions repository.RemediationExecutionRepository,
	metricsRepo repository.ProviderMetricsRepository,
	requests repository.RequestLogRepository,
	healing repository.HealingLogRepository,
	router ProviderRanker,
	notifier AdminNotifier,
	clk clock.Clock,
	logger *slog.Logger,
) *Engine {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Rules:         rules,
		Executions:    executions,
		Metrics:       metricsRepo,
		Requests:      requests,
		Healing:       healing,
		Router:        router,
		Notifier:      notifier,
		Clock:         clk,
		Logger:        logger,
		PollInterval:  DefaultPollInterval,
		MaxParallel:   DefaultMaxParallel,
		notifyBreaker: circuitbreaker.New(circuitbreaker.WebhookConfig()),
	}
}

// Start runs the poll loop until the context is cancelled. A cycle that
// outlives the interval is not overlapped; the colliding tick is skipped.
func (e *Engine) Start(ctx context.Context) {
	interval := e.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.Logger.Info("remediation engine started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			e.Logger.Info("remediation engine stopped")
			return
		case <-ticker.C:
			if !e.cycleMu.TryLock() {
				e.Logger.Warn("previous cycle still running, skipping tick")
				continue
			}
			if err := e.runCycleLocked(ctx); err != nil {
				e.Logger.Error("remediation cycle failed", slog.Any("error", err))
			}
			e.cycleMu.Unlock()
		}
	}
}

// RunCycle executes one full evaluation pass. Concurrent calls are serialized.
func (e *Engine) RunCycle(ctx context.Context) error {
	e.cycleMu.Lock()
	defer e.cycleMu.Unlock()
	return e.runCycleLocked(ctx)
}

func (e *Engine) runCycleLocked(ctx context.Context) error {
	start := time.Now()
	defer func() { metrics.RecordRemediationCycle(time.Since(start)) }()

	rules, err := e.Rules.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active rules: %w", err)
	}
	if len(rules) == 0 {
		return e.confirmRecoveries(ctx)
	}
	providers, err := e.Metrics.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list providers: %w", err)
	}

	maxParallel := e.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for _, m := range providers {
		m := m
		g.Go(func() error {
			for _, rule := range rules {
				if !rule.Matches(m.Provider, m.ServiceType) {
					continue
				}
				if err := e.evaluateAndAct(gctx, rule, m); err != nil {
					// one bad pair must not abort the cycle
					e.Logger.Error("rule evaluation failed",
						slog.String("rule", rule.ID),
						slog.String("provider", m.Provider),
						slog.Any("error", err))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return e.confirmRecoveries(ctx)
}

// evaluateAndAct runs one (rule, provider) pair: trigger, guards, then the
// action (auto) or a pending execution (semi_auto).
func (e *Engine) evaluateAndAct(ctx context.Context, rule *entity.RemediationRule, m *entity.ProviderMetrics) error {
	now := e.Clock.Now()

	eval, err := e.evaluateTrigger(ctx, rule, m, now)
	if err != nil {
		return err
	}
	if !eval.Fired {
		return nil
	}

	ok, err := e.passesGuards(ctx, rule, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	exec := &entity.RemediationExecution{
		ID:                   uuid.NewString(),
		RuleID:               rule.ID,
		Provider:             m.Provider,
		ServiceType:          m.ServiceType,
		FailureDetectedAt:    eval.DetectedAt,
		RemediationStartedAt: now,
		TriggerDetails:       eval.Details,
		Status:               entity.ExecutionPending,
		MTTDSeconds:          now.Sub(eval.DetectedAt).Seconds(),
		AffectedRequests:     eval.Affected,
	}

	if rule.Mode == entity.ModeSemiAuto {
		if err := e.Executions.Create(ctx, exec); err != nil {
			return fmt.Errorf("create pending execution: %w", err)
		}
		e.Logger.Info("remediation awaiting approval",
			slog.String("execution", exec.ID),
			slog.String("rule", rule.Name),
			slog.String("provider", m.Provider))
		return nil
	}

	exec.Status = entity.ExecutionInProgress
	if err := e.Executions.Create(ctx, exec); err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return e.execute(ctx, rule, exec, m)
}

// passesGuards checks the rule's own cooldown and hourly execution cap.
func (e *Engine) passesGuards(ctx context.Context, rule *entity.RemediationRule, now time.Time) (bool, error) {
	if rule.Cooldown > 0 {
		last, err := e.Executions.LastByRule(ctx, rule.ID)
		if err != nil {
			return false, fmt.Errorf("last execution: %w", err)
		}
		if last != nil && now.Sub(last.RemediationStartedAt) < rule.Cooldown {
			return false, nil
		}
	}
	if rule.MaxExecutionsPerHour > 0 {
		// the cap resets on the hour boundary
		count, err := e.Executions.CountByRuleSince(ctx, rule.ID, now.Truncate(time.Hour))
		if err != nil {
			return false, fmt.Errorf("count executions: %w", err)
		}
		if count >= rule.MaxExecutionsPerHour {
			return false, nil
		}
	}
	return true, nil
}

// execute performs the action and drives the execution to a terminal status.
// Action panics are caught and recorded as failures; the loop survives.
func (e *Engine) execute(ctx context.Context, rule *entity.RemediationRule, exec *entity.RemediationExecution, m *entity.ProviderMetrics) error {
	start := time.Now()
	actionTaken, actErr := e.performActionSafe(ctx, rule, m)
	now := e.Clock.Now()
	exec.RemediationCompletedAt = &now

	if actErr != nil {
		exec.Status = entity.ExecutionFailed
		exec.ErrorMessage = actErr.Error()
		e.Logger.Error("remediation action failed",
			slog.String("execution", exec.ID),
			slog.String("rule", rule.Name),
			slog.String("provider", m.Provider),
			slog.Any("error", actErr))
	} else {
		exec.Status = entity.ExecutionSuccess
		exec.WasSuccessful = true
		exec.ActionTaken = actionTaken
		e.Logger.Info("remediation executed",
			slog.String("execution", exec.ID),
			slog.String("rule", rule.Name),
			slog.String("provider", m.Provider),
			slog.String("action", string(rule.ActionType)))
	}

	if err := e.Executions.Update(ctx, exec); err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	metrics.RecordRemediation(string(rule.ActionType), string(exec.Status), time.Since(start))
	e.audit(ctx, exec, rule)
	return nil
}

func (e *Engine) performActionSafe(ctx context.Context, rule *entity.RemediationRule, m *entity.ProviderMetrics) (actionTaken string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()
	return e.performAction(ctx, rule, m)
}

// Approve replays a pending semi_auto execution's action.
func (e *Engine) Approve(ctx context.Context, executionID string) (*entity.RemediationExecution, error) {
	exec, err := e.Executions.Get(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	if exec == nil {
		return nil, fmt.Errorf("execution %q: %w", executionID, entity.ErrNotFound)
	}
	if exec.Status != entity.ExecutionPending {
		return nil, &entity.ValidationError{Field: "status", Message: fmt.Sprintf("cannot approve execution in status %q", exec.Status)}
	}
	rule, err := e.Rules.Get(ctx, exec.RuleID)
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	if rule == nil {
		return nil, fmt.Errorf("rule %q: %w", exec.RuleID, entity.ErrNotFound)
	}
	m, err := e.Metrics.Get(ctx, exec.Provider, exec.ServiceType)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("provider %q: %w", exec.Provider, entity.ErrNotFound)
	}

	// approval time is the remediation start for MTTD purposes
	now := e.Clock.Now()
	exec.RemediationStartedAt = now
	exec.MTTDSeconds = now.Sub(exec.FailureDetectedAt).Seconds()
	exec.Status = entity.ExecutionInProgress
	if err := e.Executions.Update(ctx, exec); err != nil {
		return nil, fmt.Errorf("update execution: %w", err)
	}
	if err := e.execute(ctx, rule, exec, m); err != nil {
		return nil, err
	}
	return exec, nil
}

// Reject marks a pending execution rolled_back without acting.
func (e *Engine) Reject(ctx context.Context, executionID string) (*entity.RemediationExecution, error) {
	exec, err := e.Executions.Get(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	if exec == nil {
		return nil, fmt.Errorf("execution %q: %w", executionID, entity.ErrNotFound)
	}
	if exec.Status != entity.ExecutionPending {
		return nil, &entity.ValidationError{Field: "status", Message: fmt.Sprintf("cannot reject execution in status %q", exec.Status)}
	}
	exec.Status = entity.ExecutionRolledBack
	now := e.Clock.Now()
	exec.RemediationCompletedAt = &now
	if err := e.Executions.Update(ctx, exec); err != nil {
		return nil, fmt.Errorf("update execution: %w", err)
	}
	return exec, nil
}

// confirmRecoveries closes the loop on successful executions: recovery is
// confirmed only once the provider has turned healthy again with a success
// observed after the remediation started. Executions never confirmed keep a
// nil MTTR.
func (e *Engine) confirmRecoveries(ctx context.Context) error {
	pending, err := e.Executions.ListUnconfirmed(ctx)
	if err != nil {
		return fmt.Errorf("list unconfirmed executions: %w", err)
	}
	now := e.Clock.Now()
	for _, exec := range pending {
		m, err := e.Metrics.Get(ctx, exec.Provider, exec.ServiceType)
		if err != nil {
			return fmt.Errorf("get provider: %w", err)
		}
		if m == nil || !m.IsHealthy {
			continue
		}
		if m.LastSuccessAt == nil || !m.LastSuccessAt.After(exec.RemediationStartedAt) {
			continue
		}
		exec.ConfirmRecovery(now)
		exec.RecoveredRequests = exec.AffectedRequests
		if err := e.Executions.Update(ctx, exec); err != nil {
			return fmt.Errorf("update execution: %w", err)
		}
		e.Logger.Info("recovery confirmed",
			slog.String("execution", exec.ID),
			slog.String("provider", exec.Provider),
			slog.Float64("mttr_seconds", *exec.MTTRSeconds))
	}
	return nil
}

func (e *Engine) audit(ctx context.Context, exec *entity.RemediationExecution, rule *entity.RemediationRule) {
	entry := &entity.HealingActionEntry{
		Provider:    exec.Provider,
		ServiceType: exec.ServiceType,
		Action:      entity.HealingRuleExecuted,
		Detail:      fmt.Sprintf("rule=%s action=%s status=%s", rule.Name, rule.ActionType, exec.Status),
		CreatedAt:   e.Clock.Now(),
	}
	if err := e.Healing.Append(ctx, entry); err != nil {
		e.Logger.Warn("healing log append failed", slog.Any("error", err))
	}
}

// HealingMetrics aggregates executions in the trailing window for dashboards.
type HealingMetrics struct {
	Window           time.Duration `json:"window"`
	TotalExecutions  int           `json:"total_executions"`
	Successful       int           `json:"successful"`
	Failed           int           `json:"failed"`
	Pending          int           `json:"pending"`
	RolledBack       int           `json:"rolled_back"`
	SuccessRate      float64       `json:"success_rate"`
	AvgMTTDSeconds   float64       `json:"avg_mttd_seconds"`
	AvgMTTRSeconds   float64       `json:"avg_mttr_seconds"`
	ConfirmedRecover int           `json:"confirmed_recoveries"`
}

// GetHealingMetrics computes aggregate MTTD/MTTR and outcome counts over the
// trailing window.
func (e *Engine) GetHealingMetrics(ctx context.Context, window time.Duration) (*HealingMetrics, error) {
	now := e.Clock.Now()
	execs, err := e.Executions.ListBetween(ctx, now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}

	out := &HealingMetrics{Window: window, TotalExecutions: len(execs)}
	var mttdSum, mttrSum float64
	for _, x := range execs {
		switch x.Status {
		case entity.ExecutionSuccess:
			out.Successful++
		case entity.ExecutionFailed:
			out.Failed++
		case entity.ExecutionPending, entity.ExecutionInProgress:
			out.Pending++
		case entity.ExecutionRolledBack:
			out.RolledBack++
		}
		mttdSum += x.MTTDSeconds
		if x.MTTRSeconds != nil {
			mttrSum += *x.MTTRSeconds
			out.ConfirmedRecover++
		}
	}
	terminal := out.Successful + out.Failed
	if terminal > 0 {
		out.SuccessRate = float64(out.Successful) / float64(terminal) * 100
	}
	if len(execs) > 0 {
		out.AvgMTTDSeconds = mttdSum / float64(len(execs))
	}
	if out.ConfirmedRecover > 0 {
		out.AvgMTTRSeconds = mttrSum / float64(out.ConfirmedRecover)
	}
	if len(execs) > 0 {
		slo.UpdateMeanTimeToDetect(out.AvgMTTDSeconds)
	}
	if out.ConfirmedRecover > 0 {
		slo.UpdateMeanTimeToRemediate(out.AvgMTTRSeconds)
	}
	return out, nil
}

// ListRules returns every rule, active or not.
func (e *Engine) ListRules(ctx context.Context) ([]*entity.RemediationRule, error) {
	return e.Rules.List(ctx)
}

// UpsertRule validates and stores a rule. Changes apply on the next cycle.
func (e *Engine) UpsertRule(ctx context.Context, rule *entity.RemediationRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := e.Rules.Upsert(ctx, rule); err != nil {
		return fmt.Errorf("upsert rule: %w", err)
	}
	e.Logger.Info("remediation rule stored",
		slog.String("rule", rule.ID),
		slog.String("trigger", string(rule.TriggerType)),
		slog.String("action", string(rule.ActionType)))
	return nil
}
