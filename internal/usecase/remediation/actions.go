package remediation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/usecase/routing"
)

// Default action parameters used when a rule carries none.
const (
	defaultQuarantine      = 30 * time.Minute
	defaultCooldownScale   = 10 * time.Minute
	defaultRequeueMaxItems = 20
	requeueLookback        = time.Hour
)

// ProviderRanker is the slice of the router the rotate action needs.
type ProviderRanker interface {
	SmartOrder(ctx context.Context, serviceType entity.ServiceType, opts routing.Options) ([]string, error)
}

// AdminNotifier delivers notify_admin messages to the operations channel.
type AdminNotifier interface {
	Notify(ctx context.Context, severity, message string) error
}

// ContentRequeuer re-enqueues failed content items for another attempt.
// Implementations live in the surrounding system; a nil requeuer degrades
// requeue_failed_content to an advisory count.
type ContentRequeuer interface {
	Requeue(ctx context.Context, provider string, serviceType entity.ServiceType, contentIDs []string) (int, error)
}

// performAction applies the rule's corrective action. Mutating actions go
// against the provider's metrics row through the store's atomic update;
// advisory actions (diagnostic, notify) have no side effect on routing state.
//
// Returns a human-readable description of what was done, recorded on the
// execution as ActionTaken.
func (e *Engine) performAction(ctx context.Context, rule *entity.RemediationRule, m *entity.ProviderMetrics) (string, error) {
	switch rule.ActionType {
	case entity.ActionQuarantineProvider:
		return e.quarantine(ctx, rule, m)
	case entity.ActionScaleCooldown:
		return e.scaleCooldown(ctx, rule, m)
	case entity.ActionClearRateLimit:
		return e.clearRateLimit(ctx, m)
	case entity.ActionRestartProvider:
		return e.restartProvider(ctx, m)
	case entity.ActionRotateToFallback:
		return e.rotateToFallback(ctx, rule, m)
	case entity.ActionRequeueFailedContent:
		return e.requeueFailedContent(ctx, rule, m)
	case entity.ActionRunDiagnostic:
		return e.runDiagnostic(m), nil
	case entity.ActionNotifyAdmin:
		return e.notifyAdmin(ctx, rule, m)
	default:
		return "", fmt.Errorf("unknown action type %q", rule.ActionType)
	}
}

func (e *Engine) quarantine(ctx context.Context, rule *entity.RemediationRule, m *entity.ProviderMetrics) (string, error) {
	d := defaultQuarantine
	if rule.Action.Quarantine != nil {
		d = rule.Action.Quarantine.Duration
	}
	until := e.Clock.Now().Add(d)
	_, err := e.Metrics.UpdateAtomic(ctx, m.Provider, m.ServiceType, func(row *entity.ProviderMetrics) error {
		row.RateLimitResetAt = &until
		row.IsHealthy = false
		row.Priority = 0
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("quarantine provider: %w", err)
	}
	return fmt.Sprintf("quarantined until %s", until.UTC().Format(time.RFC3339)), nil
}

// scaleCooldown extends an active cooldown window, or opens one when the
// provider keeps failing without being inside one.
func (e *Engine) scaleCooldown(ctx context.Context, rule *entity.RemediationRule, m *entity.ProviderMetrics) (string, error) {
	d := defaultCooldownScale
	if rule.Action.Quarantine != nil {
		d = rule.Action.Quarantine.Duration
	}
	now := e.Clock.Now()
	var until time.Time
	_, err := e.Metrics.UpdateAtomic(ctx, m.Provider, m.ServiceType, func(row *entity.ProviderMetrics) error {
		base := now
		if row.RateLimitResetAt != nil && row.RateLimitResetAt.After(now) {
			base = *row.RateLimitResetAt
		}
		until = base.Add(d)
		row.RateLimitResetAt = &until
		row.IsHealthy = false
		row.Priority = 0
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scale cooldown: %w", err)
	}
	return fmt.Sprintf("cooldown extended to %s", until.UTC().Format(time.RFC3339)), nil
}

func (e *Engine) clearRateLimit(ctx context.Context, m *entity.ProviderMetrics) (string, error) {
	_, err := e.Metrics.UpdateAtomic(ctx, m.Provider, m.ServiceType, func(row *entity.ProviderMetrics) error {
		row.RateLimitResetAt = nil
		row.RateLimitHits = 0
		row.Recompute()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("clear rate limit: %w", err)
	}
	return "rate limit state cleared", nil
}

func (e *Engine) restartProvider(ctx context.Context, m *entity.ProviderMetrics) (string, error) {
	_, err := e.Metrics.UpdateAtomic(ctx, m.Provider, m.ServiceType, func(row *entity.ProviderMetrics) error {
		row.Reset()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("restart provider: %w", err)
	}
	return "metrics reset to pristine state", nil
}

// rotateToFallback queries the router for the order excluding the failing
// provider. The resulting chain is recorded as evidence of recovery
// capability, not as proof of recovery.
func (e *Engine) rotateToFallback(ctx context.Context, rule *entity.RemediationRule, m *entity.ProviderMetrics) (string, error) {
	if e.Router == nil {
		return "", fmt.Errorf("rotate_to_fallback: no router configured")
	}
	opts := routing.Options{ExcludeProviders: []string{m.Provider}}
	if rule.Action.Rotate != nil {
		opts.FreeOnly = rule.Action.Rotate.FreeOnly
	}
	order, err := e.Router.SmartOrder(ctx, m.ServiceType, opts)
	if err != nil {
		return "", fmt.Errorf("rotate to fallback: %w", err)
	}
	if len(order) == 0 {
		return "", fmt.Errorf("rotate to fallback: no healthy alternative for %s", m.ServiceType)
	}
	return "fallback chain: " + strings.Join(order, " > "), nil
}

func (e *Engine) requeueFailedContent(ctx context.Context, rule *entity.RemediationRule, m *entity.ProviderMetrics) (string, error) {
	maxItems := defaultRequeueMaxItems
	if rule.Action.Requeue != nil && rule.Action.Requeue.MaxItems > 0 {
		maxItems = rule.Action.Requeue.MaxItems
	}
	now := e.Clock.Now()
	failed, err := e.Requests.ListFailedSince(ctx, m.Provider, m.ServiceType, now.Add(-requeueLookback))
	if err != nil {
		return "", fmt.Errorf("list failed requests: %w", err)
	}

	seen := map[string]bool{}
	contentIDs := make([]string, 0, maxItems)
	for _, r := range failed {
		if r.ContentID == "" {
			continue
		}
		if seen[r.ContentID] {
			continue
		}
		seen[r.ContentID] = true
		contentIDs = append(contentIDs, r.ContentID)
		if len(contentIDs) >= maxItems {
			break
		}
	}

	if e.Requeuer == nil {
		return fmt.Sprintf("%d failed content items identified (no requeuer configured)", len(contentIDs)), nil
	}
	n, err := e.Requeuer.Requeue(ctx, m.Provider, m.ServiceType, contentIDs)
	if err != nil {
		return "", fmt.Errorf("requeue content: %w", err)
	}
	return fmt.Sprintf("%d content items requeued", n), nil
}

func (e *Engine) runDiagnostic(m *entity.ProviderMetrics) string {
	return snapshot(map[string]any{
		"provider":        m.Provider,
		"service_type":    m.ServiceType,
		"health_score":    m.HealthScore,
		"is_healthy":      m.IsHealthy,
		"priority":        m.Priority,
		"success_rate":    m.SuccessRate(),
		"avg_latency_ms":  m.AvgLatencyMs,
		"rate_limit_hits": m.RateLimitHits,
		"total_requests":  m.TotalRequests,
		"last_error":      m.LastError,
	})
}

// notifyAdmin goes through the circuit breaker: a dead notification channel
// must not stall every poll cycle on its timeout.
func (e *Engine) notifyAdmin(ctx context.Context, rule *entity.RemediationRule, m *entity.ProviderMetrics) (string, error) {
	if e.Notifier == nil {
		return "", fmt.Errorf("notify_admin: no notifier configured")
	}
	severity := "warning"
	if rule.Action.Notify != nil && rule.Action.Notify.Severity != "" {
		severity = rule.Action.Notify.Severity
	}
	msg := fmt.Sprintf("[%s] rule %q fired for %s/%s: health=%.1f err=%q",
		severity, rule.Name, m.Provider, m.ServiceType, m.HealthScore, m.LastError)

	_, err := e.notifyBreaker.Execute(func() (interface{}, error) {
		return nil, e.Notifier.Notify(ctx, severity, msg)
	})
	if err != nil {
		return "", fmt.Errorf("notify admin: %w", err)
	}
	return "admin notified: " + severity, nil
}

