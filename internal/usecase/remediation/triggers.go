package remediation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"provider-mesh/internal/domain/entity"
)

// Evaluation is the result of evaluating one rule against one provider.
//
// DetectedAt is the time the precipitating evidence occurred, not the poll
// time: MTTD measures detection latency against the underlying event, not
// the engine's own scheduling jitter.
type Evaluation struct {
	Fired      bool
	DetectedAt time.Time
	Details    string // JSON snapshot of the evidence
	Affected   int
}

// evaluateTrigger checks the rule's trigger against the provider's current
// state and recent request log.
func (e *Engine) evaluateTrigger(ctx context.Context, rule *entity.RemediationRule, m *entity.ProviderMetrics, now time.Time) (Evaluation, error) {
	switch rule.TriggerType {
	case entity.TriggerErrorRateThreshold:
		return e.evaluateErrorRate(ctx, rule.Trigger.ErrorRate, m, now)
	case entity.TriggerConsecutiveFailures:
		return e.evaluateConsecutiveFailures(ctx, rule.Trigger.ConsecutiveFailures, m)
	case entity.TriggerRateLimitDetected:
		return evaluateRateLimit(m, now), nil
	case entity.TriggerHealthScoreDrop:
		return evaluateHealthScore(rule.Trigger.HealthScore, m, now), nil
	case entity.TriggerLatencySpike:
		return e.evaluateLatencySpike(ctx, rule.Trigger.LatencySpike, m, now)
	default:
		return Evaluation{}, fmt.Errorf("unknown trigger type %q", rule.TriggerType)
	}
}

func (e *Engine) evaluateErrorRate(ctx context.Context, t *entity.ErrorRateTrigger, m *entity.ProviderMetrics, now time.Time) (Evaluation, error) {
	recs, err := e.Requests.ListSince(ctx, m.Provider, m.ServiceType, now.Add(-t.Window))
	if err != nil {
		return Evaluation{}, fmt.Errorf("list requests: %w", err)
	}
	if len(recs) < t.MinSampleSize {
		return Evaluation{}, nil
	}

	failures := 0
	var lastFailureAt time.Time
	for _, r := range recs {
		if r.Status == entity.RequestFailed {
			failures++
			if r.CreatedAt.After(lastFailureAt) {
				lastFailureAt = r.CreatedAt
			}
		}
	}
	rate := float64(failures) / float64(len(recs))
	if rate < t.Threshold {
		return Evaluation{}, nil
	}

	return Evaluation{
		Fired:      true,
		DetectedAt: lastFailureAt,
		Affected:   failures,
		Details: snapshot(map[string]any{
			"error_rate":  rate,
			"failures":    failures,
			"sample_size": len(recs),
			"window":      t.Window.String(),
		}),
	}, nil
}

func (e *Engine) evaluateConsecutiveFailures(ctx context.Context, t *entity.ConsecutiveFailuresTrigger, m *entity.ProviderMetrics) (Evaluation, error) {
	recs, err := e.Requests.Tail(ctx, m.Provider, m.ServiceType, t.Count)
	if err != nil {
		return Evaluation{}, fmt.Errorf("tail requests: %w", err)
	}
	if len(recs) < t.Count {
		return Evaluation{}, nil
	}
	for _, r := range recs {
		if r.Status != entity.RequestFailed {
			return Evaluation{}, nil
		}
	}

	// recs is newest first; the run's first failure is the evidence
	return Evaluation{
		Fired:      true,
		DetectedAt: recs[t.Count-1].CreatedAt,
		Affected:   t.Count,
		Details: snapshot(map[string]any{
			"consecutive_failures": t.Count,
			"last_error":           recs[0].ErrorMessage,
		}),
	}, nil
}

func evaluateRateLimit(m *entity.ProviderMetrics, now time.Time) Evaluation {
	if !m.InCooldown(now) {
		return Evaluation{}
	}
	detectedAt := now
	if m.LastFailureAt != nil {
		detectedAt = *m.LastFailureAt
	}
	return Evaluation{
		Fired:      true,
		DetectedAt: detectedAt,
		Affected:   m.RateLimitHits,
		Details: snapshot(map[string]any{
			"rate_limit_hits": m.RateLimitHits,
			"reset_at":        m.RateLimitResetAt.UTC().Format(time.RFC3339),
		}),
	}
}

func evaluateHealthScore(t *entity.HealthScoreTrigger, m *entity.ProviderMetrics, now time.Time) Evaluation {
	if m.HealthScore >= t.Threshold {
		return Evaluation{}
	}
	detectedAt := now
	if m.LastFailureAt != nil {
		detectedAt = *m.LastFailureAt
	}
	return Evaluation{
		Fired:      true,
		DetectedAt: detectedAt,
		Affected:   int(m.FailureCount),
		Details: snapshot(map[string]any{
			"health_score": m.HealthScore,
			"threshold":    t.Threshold,
		}),
	}
}

func (e *Engine) evaluateLatencySpike(ctx context.Context, t *entity.LatencySpikeTrigger, m *entity.ProviderMetrics, now time.Time) (Evaluation, error) {
	recs, err := e.Requests.ListSince(ctx, m.Provider, m.ServiceType, now.Add(-t.Window))
	if err != nil {
		return Evaluation{}, fmt.Errorf("list requests: %w", err)
	}
	if len(recs) < t.MinSampleSize {
		return Evaluation{}, nil
	}

	var sum float64
	var latest time.Time
	for _, r := range recs {
		sum += float64(r.LatencyMs)
		if r.CreatedAt.After(latest) {
			latest = r.CreatedAt
		}
	}
	avg := sum / float64(len(recs))
	if avg <= t.ThresholdMs {
		return Evaluation{}, nil
	}

	return Evaluation{
		Fired:      true,
		DetectedAt: latest,
		Affected:   len(recs),
		Details: snapshot(map[string]any{
			"avg_latency_ms": avg,
			"threshold_ms":   t.ThresholdMs,
			"sample_size":    len(recs),
			"window":         t.Window.String(),
		}),
	}, nil
}

func snapshot(fields map[string]any) string {
	b, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(b)
}
