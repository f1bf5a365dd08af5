// Package seed applies the initial control-plane state to an empty store.
//
// Seeding is idempotent at the deployment level: it runs only when the
// fallback chain table is empty, so a restart against a populated database
// never overwrites operator changes made through the API.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/yaml.v3"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type providerSpec struct {
	Provider       string  `yaml:"provider"`
	ServiceType    string  `yaml:"service_type"`
	IsFree         bool    `yaml:"is_free"`
	CostPerRequest float64 `yaml:"cost_per_request"`
	BasePriority   int     `yaml:"base_priority"`
}

type chainSpec struct {
	ServiceType string                 `yaml:"service_type"`
	ChainName   string                 `yaml:"chain_name"`
	Providers   []string               `yaml:"providers"`
	Condition   *entity.ChainCondition `yaml:"condition"`
	IsDefault   bool                   `yaml:"is_default"`
}

type ruleSpec struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	TriggerType string `yaml:"trigger_type"`
	Trigger     struct {
		Threshold     float64 `yaml:"threshold"`
		WindowSeconds int     `yaml:"window_seconds"`
		MinSampleSize int     `yaml:"min_sample_size"`
		Count         int     `yaml:"count"`
		ThresholdMs   float64 `yaml:"threshold_ms"`
	} `yaml:"trigger"`
	ActionType string `yaml:"action_type"`
	Action     struct {
		DurationSeconds int    `yaml:"duration_seconds"`
		FreeOnly        bool   `yaml:"free_only"`
		MaxItems        int    `yaml:"max_items"`
		Severity        string `yaml:"severity"`
	} `yaml:"action"`
	Mode                 string `yaml:"mode"`
	Priority             int    `yaml:"priority"`
	CooldownSeconds      int    `yaml:"cooldown_seconds"`
	MaxExecutionsPerHour int    `yaml:"max_executions_per_hour"`
	Provider             string `yaml:"provider"`
	ServiceType          string `yaml:"service_type"`
}

type tierSpec struct {
	Tier               string   `yaml:"tier"`
	QualityWeight      *float64 `yaml:"quality_weight"`
	PreferredProviders []string `yaml:"preferred_providers"`
	ExcludedProviders  []string `yaml:"excluded_providers"`
	PrioritizeFree     bool     `yaml:"prioritize_free"`
	MinAcceptanceRate  float64  `yaml:"min_acceptance_rate"`
}

type runwayTierSpec struct {
	Tier              int                          `yaml:"tier"`
	MonthlySpendLimit float64                      `yaml:"monthly_spend_limit"`
	ModelLimits       map[string]entity.ModelLimit `yaml:"model_limits"`
}

// Manifest is the parsed seed file.
type Manifest struct {
	Providers    []providerSpec `yaml:"providers"`
	Chains       []chainSpec    `yaml:"chains"`
	Rules        []ruleSpec     `yaml:"rules"`
	QualityTiers []tierSpec     `yaml:"quality_tiers"`
	RunwayTier   *runwayTierSpec `yaml:"runway_tier"`
}

// Stores collects every repository the seeder writes to.
type Stores struct {
	Metrics repository.ProviderMetricsRepository
	Chains  repository.FallbackChainRepository
	Rules   repository.RemediationRuleRepository
	Tiers   repository.QualityTierRepository
	Quota   repository.TierQuotaRepository
}

// LoadDefaults parses the embedded seed manifest.
func LoadDefaults() (*Manifest, error) {
	return Parse(defaultsYAML)
}

// Parse decodes a seed manifest and validates every entity it defines.
func Parse(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse seed manifest: %w", err)
	}
	for i := range m.Chains {
		if err := m.Chains[i].toEntity().Validate(); err != nil {
			return nil, fmt.Errorf("seed chain %q: %w", m.Chains[i].ChainName, err)
		}
	}
	for i := range m.Rules {
		rule, err := m.Rules[i].toEntity()
		if err != nil {
			return nil, fmt.Errorf("seed rule %q: %w", m.Rules[i].ID, err)
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("seed rule %q: %w", m.Rules[i].ID, err)
		}
	}
	for i := range m.QualityTiers {
		if !entity.QualityTier(m.QualityTiers[i].Tier).Valid() {
			return nil, fmt.Errorf("seed quality tier %q: unknown tier", m.QualityTiers[i].Tier)
		}
	}
	if m.RunwayTier != nil {
		if err := m.RunwayTier.toEntity().Validate(); err != nil {
			return nil, fmt.Errorf("seed runway tier: %w", err)
		}
	}
	return &m, nil
}

func (s chainSpec) toEntity() *entity.FallbackChain {
	return &entity.FallbackChain{
		ServiceType: entity.ServiceType(s.ServiceType),
		ChainName:   s.ChainName,
		Providers:   s.Providers,
		Condition:   s.Condition,
		IsDefault:   s.IsDefault,
	}
}

func (s ruleSpec) toEntity() (*entity.RemediationRule, error) {
	window := time.Duration(s.Trigger.WindowSeconds) * time.Second

	var trigger entity.TriggerConditions
	switch entity.TriggerType(s.TriggerType) {
	case entity.TriggerErrorRateThreshold:
		trigger.ErrorRate = &entity.ErrorRateTrigger{
			Threshold:     s.Trigger.Threshold,
			Window:        window,
			MinSampleSize: s.Trigger.MinSampleSize,
		}
	case entity.TriggerConsecutiveFailures:
		trigger.ConsecutiveFailures = &entity.ConsecutiveFailuresTrigger{Count: s.Trigger.Count}
	case entity.TriggerRateLimitDetected:
		trigger.RateLimit = &entity.RateLimitTrigger{}
	case entity.TriggerHealthScoreDrop:
		trigger.HealthScore = &entity.HealthScoreTrigger{Threshold: s.Trigger.Threshold}
	case entity.TriggerLatencySpike:
		trigger.LatencySpike = &entity.LatencySpikeTrigger{
			ThresholdMs:   s.Trigger.ThresholdMs,
			Window:        window,
			MinSampleSize: s.Trigger.MinSampleSize,
		}
	default:
		return nil, fmt.Errorf("unknown trigger type %q", s.TriggerType)
	}

	var action entity.ActionParams
	switch entity.ActionType(s.ActionType) {
	case entity.ActionQuarantineProvider, entity.ActionScaleCooldown:
		if s.Action.DurationSeconds > 0 {
			action.Quarantine = &entity.QuarantineParams{
				Duration: time.Duration(s.Action.DurationSeconds) * time.Second,
			}
		}
	case entity.ActionRotateToFallback:
		if s.Action.FreeOnly {
			action.Rotate = &entity.RotateParams{FreeOnly: true}
		}
	case entity.ActionRequeueFailedContent:
		if s.Action.MaxItems > 0 {
			action.Requeue = &entity.RequeueParams{MaxItems: s.Action.MaxItems}
		}
	case entity.ActionNotifyAdmin:
		if s.Action.Severity != "" {
			action.Notify = &entity.NotifyParams{Severity: s.Action.Severity}
		}
	}

	return &entity.RemediationRule{
		ID:                   s.ID,
		Name:                 s.Name,
		TriggerType:          entity.TriggerType(s.TriggerType),
		Trigger:              trigger,
		ActionType:           entity.ActionType(s.ActionType),
		Action:               action,
		Mode:                 entity.ExecutionMode(s.Mode),
		Priority:             s.Priority,
		Cooldown:             time.Duration(s.CooldownSeconds) * time.Second,
		MaxExecutionsPerHour: s.MaxExecutionsPerHour,
		Provider:             s.Provider,
		ServiceType:          entity.ServiceType(s.ServiceType),
		IsActive:             true,
	}, nil
}

func (s tierSpec) toEntity() *entity.QualityTierConfig {
	return &entity.QualityTierConfig{
		TierName:              entity.QualityTier(s.Tier),
		QualityWeightOverride: s.QualityWeight,
		PreferredProviders:    s.PreferredProviders,
		ExcludedProviders:     s.ExcludedProviders,
		PrioritizeFree:        s.PrioritizeFree,
		MinAcceptanceRate:     s.MinAcceptanceRate,
	}
}

func (s runwayTierSpec) toEntity() *entity.TierQuotaConfig {
	return &entity.TierQuotaConfig{
		Tier:              entity.RunwayTier(s.Tier),
		ModelLimits:       s.ModelLimits,
		MonthlySpendLimit: s.MonthlySpendLimit,
	}
}

// Apply writes the manifest to the stores when they are still empty.
// Returns true when seeding ran.
func Apply(ctx context.Context, m *Manifest, stores Stores, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	n, err := stores.Chains.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count fallback chains: %w", err)
	}
	if n > 0 {
		logger.Debug("store already seeded", slog.Int("chains", n))
		return false, nil
	}

	for _, p := range m.Providers {
		row := &entity.ProviderMetrics{
			Provider:       p.Provider,
			ServiceType:    entity.ServiceType(p.ServiceType),
			IsFreeProvider: p.IsFree,
			CostPerRequest: p.CostPerRequest,
			BasePriority:   p.BasePriority,
			HealthScore:    100,
			IsHealthy:      true,
			Priority:       p.BasePriority,
		}
		if err := stores.Metrics.Create(ctx, row); err != nil {
			return false, fmt.Errorf("seed provider %s/%s: %w", p.Provider, p.ServiceType, err)
		}
	}
	for _, c := range m.Chains {
		if err := stores.Chains.Create(ctx, c.toEntity()); err != nil {
			return false, fmt.Errorf("seed chain %q: %w", c.ChainName, err)
		}
	}
	for _, r := range m.Rules {
		rule, err := r.toEntity()
		if err != nil {
			return false, err
		}
		if err := stores.Rules.Upsert(ctx, rule); err != nil {
			return false, fmt.Errorf("seed rule %q: %w", r.ID, err)
		}
	}
	for _, t := range m.QualityTiers {
		if err := stores.Tiers.Upsert(ctx, t.toEntity()); err != nil {
			return false, fmt.Errorf("seed quality tier %q: %w", t.Tier, err)
		}
	}
	if m.RunwayTier != nil {
		existing, err := stores.Quota.GetTierConfig(ctx)
		if err != nil {
			return false, fmt.Errorf("get tier config: %w", err)
		}
		if existing == nil {
			if err := stores.Quota.SetTierConfig(ctx, m.RunwayTier.toEntity()); err != nil {
				return false, fmt.Errorf("seed runway tier: %w", err)
			}
		}
	}

	logger.Info("initial state seeded",
		slog.Int("providers", len(m.Providers)),
		slog.Int("chains", len(m.Chains)),
		slog.Int("rules", len(m.Rules)),
		slog.Int("quality_tiers", len(m.QualityTiers)))
	return true, nil
}
