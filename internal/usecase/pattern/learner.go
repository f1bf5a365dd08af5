// Package pattern learns recurring provider failure signatures and vetoes
// providers for request shapes that are known to fail.
package pattern

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/observability/metrics"
	"provider-mesh/internal/repository"
	"provider-mesh/pkg/clock"
)

// Confidence a duration-constraint pattern needs before it vetoes routing.
const vetoConfidence = 0.7

// Learner classifies failure messages into pattern types, accumulates
// confidence per signature, and answers routing veto queries.
type Learner struct {
	Patterns repository.ErrorPatternRepository
	Healing  repository.HealingLogRepository
	Clock    clock.Clock
	Logger   *slog.Logger
}

// NewLearner wires a Learner with its store dependencies.
func NewLearner(patterns repository.ErrorPatternRepository, healing repository.HealingLogRepository, clk clock.Clock, logger *slog.Logger) *Learner {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{Patterns: patterns, Healing: healing, Clock: clk, Logger: logger}
}

// Classify buckets an error into a pattern type via ordered keyword matching.
// Earlier rules win: duration phrasing beats the generic quota phrasing that
// often appears in the same message.
func Classify(errorCode, errorMessage string) entity.PatternType {
	msg := strings.ToLower(errorMessage)

	switch {
	case strings.Contains(msg, "duration") &&
		(strings.Contains(msg, "must be") || strings.Contains(msg, "maximum") ||
			strings.Contains(msg, "exceed") || strings.Contains(msg, "not supported")):
		return entity.PatternDurationConstraint
	case errorCode == "429" || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate-limit") || strings.Contains(msg, "too many requests"):
		return entity.PatternRateLimit
	case strings.Contains(msg, "content policy") || strings.Contains(msg, "content filter") ||
		strings.Contains(msg, "safety") || strings.Contains(msg, "moderation"):
		return entity.PatternContentFilter
	case strings.Contains(msg, "prompt") &&
		(strings.Contains(msg, "length") || strings.Contains(msg, "too long") || strings.Contains(msg, "token")):
		return entity.PatternPromptLength
	case errorCode == "404" || strings.Contains(msg, "not found") ||
		strings.Contains(msg, "no such model") || strings.Contains(msg, "deprecated"):
		return entity.PatternAPIVersion
	case strings.Contains(msg, "quota") || strings.Contains(msg, "limit exceeded"):
		return entity.PatternQuotaExceeded
	default:
		return entity.PatternUnknown
	}
}

var durationRe = regexp.MustCompile(`(\d+)\s*(?:s\b|sec|second)`)

// extractDuration pulls the offending duration in seconds from the request
// params if present, falling back to the error message.
func extractDuration(msg string, params *entity.RequestParams) (int, bool) {
	if params != nil && params.DurationSeconds > 0 {
		return params.DurationSeconds, true
	}
	m := durationRe.FindStringSubmatch(strings.ToLower(msg))
	if m == nil {
		return 0, false
	}
	d, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return d, true
}

// PatternKey derives the normalized bucketed signature so near-duplicate
// failures collapse into one pattern row.
func (l *Learner) PatternKey(t entity.PatternType, outcome *entity.RequestOutcome) string {
	switch t {
	case entity.PatternDurationConstraint:
		if d, ok := extractDuration(outcome.ErrorMessage, outcome.Params); ok {
			return fmt.Sprintf("duration:%ds", d)
		}
		return "duration:unknown"
	case entity.PatternPromptLength:
		chars := 0
		if outcome.Params != nil {
			chars = outcome.Params.PromptChars
		}
		// round to the nearest 100 characters
		bucket := (chars + 50) / 100 * 100
		return fmt.Sprintf("prompt_length:%d", bucket)
	case entity.PatternRateLimit:
		// hourly bucket: repeated throttling in the same hour is one pattern
		return "rate_limit:" + l.Clock.Now().UTC().Format("2006-01-02T15")
	default:
		return string(t)
	}
}

// suggestedFix generates the human-readable remediation hint stored with a
// newly learned pattern.
func suggestedFix(t entity.PatternType, key string) string {
	switch t {
	case entity.PatternDurationConstraint:
		return fmt.Sprintf("provider rejects requests with %s; route these durations to a different provider", strings.TrimPrefix(key, "duration:"))
	case entity.PatternRateLimit:
		return "provider is throttling; reduce request rate or spread load across providers"
	case entity.PatternContentFilter:
		return "prompt tripped the provider's content policy; rephrase or pre-screen prompts"
	case entity.PatternPromptLength:
		return "prompt exceeds the provider's length limit; truncate or summarize before sending"
	case entity.PatternAPIVersion:
		return "endpoint or model not found; verify the provider API version and model name"
	case entity.PatternQuotaExceeded:
		return "account quota exhausted; raise the plan limit or shift traffic to another provider"
	default:
		return "unclassified failure; inspect recent error messages for this provider"
	}
}

// Learn folds one failed outcome into the pattern store. Outcomes without an
// error message carry no signature and are ignored.
func (l *Learner) Learn(ctx context.Context, outcome *entity.RequestOutcome) error {
	if outcome.Success || outcome.ErrorMessage == "" {
		return nil
	}

	ptype := Classify(outcome.ErrorCode, outcome.ErrorMessage)
	key := l.PatternKey(ptype, outcome)
	now := l.Clock.Now()

	existing, err := l.Patterns.Get(ctx, outcome.Provider, key)
	if err != nil {
		return fmt.Errorf("get pattern: %w", err)
	}

	if existing != nil {
		existing.OccurrenceCount++
		existing.ConfidenceScore = entity.Confidence(existing.OccurrenceCount)
		existing.LastSeenAt = now
		if err := l.Patterns.Upsert(ctx, existing); err != nil {
			return fmt.Errorf("update pattern: %w", err)
		}
		return nil
	}

	p := &entity.ErrorPattern{
		Provider:        outcome.Provider,
		ServiceType:     outcome.ServiceType,
		PatternType:     ptype,
		PatternKey:      key,
		OccurrenceCount: 1,
		ConfidenceScore: entity.Confidence(1),
		SuggestedFix:    suggestedFix(ptype, key),
		IsActive:        true,
		FirstSeenAt:     now,
		LastSeenAt:      now,
	}
	if err := l.Patterns.Upsert(ctx, p); err != nil {
		return fmt.Errorf("insert pattern: %w", err)
	}

	l.Logger.Info("error pattern learned",
		slog.String("provider", outcome.Provider),
		slog.String("pattern_type", string(ptype)),
		slog.String("pattern_key", key))
	metrics.RecordPatternLearned(outcome.Provider, string(ptype))
	l.audit(ctx, outcome.Provider, outcome.ServiceType, key)
	return nil
}

// audit writes the error_pattern_learned entry. Best effort: audit-path
// store failures never propagate to the hot path.
func (l *Learner) audit(ctx context.Context, provider string, serviceType entity.ServiceType, key string) {
	entry := &entity.HealingActionEntry{
		Provider:    provider,
		ServiceType: serviceType,
		Action:      entity.HealingPatternLearned,
		Detail:      key,
		CreatedAt:   l.Clock.Now(),
	}
	if err := l.Healing.Append(ctx, entry); err != nil {
		l.Logger.Warn("healing log append failed", slog.Any("error", err))
	}
}

// VetoesProvider reports whether an active learned pattern pre-empts routing
// to the provider for this request shape: a duration_constraint pattern with
// confidence above the veto threshold whose encoded duration equals the
// request's duration is a guaranteed failure not worth attempting.
func (l *Learner) VetoesProvider(ctx context.Context, provider string, params *entity.RequestParams) (bool, error) {
	if params == nil || params.DurationSeconds <= 0 {
		return false, nil
	}
	patterns, err := l.Patterns.ListActiveByProvider(ctx, provider)
	if err != nil {
		return false, fmt.Errorf("list patterns: %w", err)
	}
	want := fmt.Sprintf("duration:%ds", params.DurationSeconds)
	for _, p := range patterns {
		if p.PatternType == entity.PatternDurationConstraint &&
			p.ConfidenceScore > vetoConfidence &&
			p.PatternKey == want {
			return true, nil
		}
	}
	return false, nil
}
