// Package health turns reported request outcomes into provider health state.
//
// The scorer is the only writer of ProviderMetrics on the outcome path;
// remediation actions are the only other writer. All mutation goes through
// the store's atomic read-modify-write so the two never lose updates.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/observability/metrics"
	"provider-mesh/internal/repository"
	"provider-mesh/pkg/clock"
)

// Cooldown windows applied outside the generic scoring loop.
const (
	// RateLimitCooldown is the quarantine window after a rate-limited
	// outcome. Immediate rather than amortized over history: a throttling
	// provider must leave the routing pool on the very next decision.
	RateLimitCooldown = 5 * time.Minute

	// HardFailureCooldown is the quarantine window after an auth/billing
	// class failure. These do not self-heal by waiting, so the window is
	// long enough for a human to notice.
	HardFailureCooldown = 30 * time.Minute
)

// PatternLearner is the slice of the error pattern learner the scorer needs.
type PatternLearner interface {
	Learn(ctx context.Context, outcome *entity.RequestOutcome) error
}

// Scorer applies reported outcomes to provider metrics rows.
type Scorer struct {
	Metrics  repository.ProviderMetricsRepository
	Requests repository.RequestLogRepository
	Healing  repository.HealingLogRepository
	Learner  PatternLearner
	Clock    clock.Clock
	Logger   *slog.Logger
}

// NewScorer wires a Scorer with its dependencies.
func NewScorer(
	metricsRepo repository.ProviderMetricsRepository,
	requests repository.RequestLogRepository,
	healing repository.HealingLogRepository,
	learner PatternLearner,
	clk clock.Clock,
	logger *slog.Logger,
) *Scorer {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		Metrics:  metricsRepo,
		Requests: requests,
		Healing:  healing,
		Learner:  learner,
		Clock:    clk,
		Logger:   logger,
	}
}

// ReportOutcome records one provider attempt and updates the provider's
// health state.
//
// Rate-limited outcomes take a single authoritative path: the immediate
// cooldown (priority zeroed, reset timestamp set) replaces the generic
// recompute for that event, so one throttled request is never penalized
// twice. The accrued rateLimitHits counter still feeds the rate-limit
// penalty of future generic recomputes.
func (s *Scorer) ReportOutcome(ctx context.Context, outcome *entity.RequestOutcome) error {
	if err := outcome.Validate(); err != nil {
		return err
	}
	now := s.Clock.Now()

	inserted, err := s.appendRecord(ctx, outcome, now)
	if err != nil {
		return err
	}
	if !inserted {
		// A retried report with the same request ID has already been
		// applied; scoring it again would double-count the attempt.
		s.Logger.Debug("duplicate outcome ignored",
			slog.String("provider", outcome.Provider),
			slog.String("request_id", outcome.RequestID))
		return nil
	}

	class := entity.ClassifyOutcome(outcome)

	switch class {
	case entity.FailureRateLimit:
		err = s.applyRateLimitCooldown(ctx, outcome, now)
	case entity.FailureHard:
		err = s.applyHardFailure(ctx, outcome, now)
	default:
		err = s.applyScored(ctx, outcome, now)
	}
	if err != nil {
		return err
	}

	if !outcome.Success && s.Learner != nil {
		if lerr := s.Learner.Learn(ctx, outcome); lerr != nil {
			// learning is advisory; a pattern-store hiccup must not fail
			// the outcome report
			s.Logger.Warn("pattern learning failed",
				slog.String("provider", outcome.Provider),
				slog.Any("error", lerr))
		}
	}

	metrics.RecordOutcome(outcome.Provider, string(outcome.ServiceType), outcome.Success)
	return nil
}

func (s *Scorer) appendRecord(ctx context.Context, o *entity.RequestOutcome, now time.Time) (bool, error) {
	status := entity.RequestSuccess
	if !o.Success {
		status = entity.RequestFailed
	}
	rec := &entity.RequestRecord{
		Provider:     o.Provider,
		ServiceType:  o.ServiceType,
		RequestID:    o.RequestID,
		Status:       status,
		LatencyMs:    o.LatencyMs,
		ErrorCode:    o.ErrorCode,
		ErrorMessage: o.ErrorMessage,
		CostIncurred: o.CostIncurred,
		CampaignID:   o.CampaignID,
		ContentID:    o.ContentID,
		CreatedAt:    now,
	}
	inserted, err := s.Requests.Append(ctx, rec)
	if err != nil {
		return false, fmt.Errorf("append request record: %w", err)
	}
	return inserted, nil
}

// applyScored is the generic scoring path for successes, transient failures
// and anything else that should be amortized over history.
func (s *Scorer) applyScored(ctx context.Context, o *entity.RequestOutcome, now time.Time) error {
	var wasHealthy, isHealthy bool
	updated, err := s.Metrics.UpdateAtomic(ctx, o.Provider, o.ServiceType, func(m *entity.ProviderMetrics) error {
		wasHealthy = m.IsHealthy

		m.TotalRequests++
		// incremental running mean: avg' = (avg*(n-1)+latency)/n
		n := float64(m.TotalRequests)
		m.AvgLatencyMs = (m.AvgLatencyMs*(n-1) + float64(o.LatencyMs)) / n
		m.TotalCost += o.CostIncurred

		if o.Success {
			m.SuccessCount++
			m.LastSuccessAt = &now
		} else {
			m.FailureCount++
			m.LastFailureAt = &now
			m.LastError = o.ErrorMessage
		}

		m.Recompute()
		isHealthy = m.IsHealthy
		return nil
	})
	if err != nil {
		return fmt.Errorf("update provider metrics: %w", err)
	}

	if wasHealthy && !isHealthy {
		s.Logger.Warn("provider turned unhealthy",
			slog.String("provider", o.Provider),
			slog.String("service_type", string(o.ServiceType)),
			slog.Float64("health_score", updated.HealthScore),
			slog.Int("priority", updated.Priority))
		s.audit(ctx, o, entity.HealingPriorityAdjusted,
			fmt.Sprintf("health_score=%.1f priority=%d", updated.HealthScore, updated.Priority), now)
	}
	metrics.SetHealthScore(o.Provider, string(o.ServiceType), updated.HealthScore)
	return nil
}

// applyRateLimitCooldown is the immediate path for 429/quota outcomes.
func (s *Scorer) applyRateLimitCooldown(ctx context.Context, o *entity.RequestOutcome, now time.Time) error {
	resetAt := now.Add(RateLimitCooldown)
	_, err := s.Metrics.UpdateAtomic(ctx, o.Provider, o.ServiceType, func(m *entity.ProviderMetrics) error {
		m.TotalRequests++
		m.FailureCount++
		m.TotalCost += o.CostIncurred
		m.RateLimitHits++
		m.RateLimitResetAt = &resetAt
		m.IsHealthy = false
		m.Priority = 0
		m.LastFailureAt = &now
		m.LastError = o.ErrorMessage
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply rate limit cooldown: %w", err)
	}

	s.Logger.Warn("rate limit cooldown applied",
		slog.String("provider", o.Provider),
		slog.String("service_type", string(o.ServiceType)),
		slog.Time("reset_at", resetAt))
	s.audit(ctx, o, entity.HealingRateLimitCooldown, "reset_at="+resetAt.UTC().Format(time.RFC3339), now)
	metrics.RecordCooldown(o.Provider, string(o.ServiceType))
	return nil
}

// applyHardFailure escalates auth/billing class failures to an explicit
// quarantine instead of the generic scorer: waiting will not fix them.
func (s *Scorer) applyHardFailure(ctx context.Context, o *entity.RequestOutcome, now time.Time) error {
	resetAt := now.Add(HardFailureCooldown)
	_, err := s.Metrics.UpdateAtomic(ctx, o.Provider, o.ServiceType, func(m *entity.ProviderMetrics) error {
		m.TotalRequests++
		m.FailureCount++
		m.TotalCost += o.CostIncurred
		m.RateLimitResetAt = &resetAt
		m.IsHealthy = false
		m.Priority = 0
		m.LastFailureAt = &now
		m.LastError = o.ErrorMessage
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply hard failure quarantine: %w", err)
	}

	s.Logger.Error("hard failure quarantine",
		slog.String("provider", o.Provider),
		slog.String("service_type", string(o.ServiceType)),
		slog.String("error_code", o.ErrorCode),
		slog.String("error", o.ErrorMessage))
	s.audit(ctx, o, entity.HealingHardFailureEscalate, o.ErrorCode+": "+o.ErrorMessage, now)
	return nil
}

func (s *Scorer) audit(ctx context.Context, o *entity.RequestOutcome, action entity.HealingAction, detail string, now time.Time) {
	entry := &entity.HealingActionEntry{
		Provider:    o.Provider,
		ServiceType: o.ServiceType,
		Action:      action,
		Detail:      detail,
		CreatedAt:   now,
	}
	if err := s.Healing.Append(ctx, entry); err != nil {
		s.Logger.Warn("healing log append failed", slog.Any("error", err))
	}
}
