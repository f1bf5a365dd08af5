// Package routing ranks providers for the request path.
//
// The router only reads store state and is safe for unbounded concurrent
// callers. Fallback semantics live in the caller: the returned list is an
// order of attempts, not a guarantee that any provider succeeds.
package routing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/observability/metrics"
	"provider-mesh/internal/repository"
	"provider-mesh/pkg/clock"
)

// Tuning constants for the quality-aware ranking.
const (
	// preferredBoost multiplies the combined score of a tier's preferred
	// providers after all filters have been applied.
	preferredBoost = 1.2

	// cinematicAcceptanceGate is the minimum acceptance rate for a provider
	// to be offered at the cinematic tier.
	cinematicAcceptanceGate = 70.0
)

// Vetoer answers whether a learned pattern pre-empts routing to a provider
// for the given request shape.
type Vetoer interface {
	VetoesProvider(ctx context.Context, provider string, params *entity.RequestParams) (bool, error)
}

// Options narrows the operational candidate set for both ranking modes.
type Options struct {
	FreeOnly         bool
	ExcludeProviders []string
	Params           *entity.RequestParams
}

// QualityOptions adds the quality-aware knobs on top of the operational ones.
type QualityOptions struct {
	Options
	Tier            entity.QualityTier
	MinQualityScore float64
}

// Router serves ranked provider orders from current store state.
type Router struct {
	Metrics repository.ProviderMetricsRepository
	Quality repository.QualityScoreRepository
	Tiers   repository.QualityTierRepository
	Chains  repository.FallbackChainRepository
	Vetoer  Vetoer
	Clock   clock.Clock
	Logger  *slog.Logger
}

// NewRouter wires a Router with its dependencies.
func NewRouter(
	metricsRepo repository.ProviderMetricsRepository,
	quality repository.QualityScoreRepository,
	tiers repository.QualityTierRepository,
	chains repository.FallbackChainRepository,
	vetoer Vetoer,
	clk clock.Clock,
	logger *slog.Logger,
) *Router {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		Metrics: metricsRepo,
		Quality: quality,
		Tiers:   tiers,
		Chains:  chains,
		Vetoer:  vetoer,
		Clock:   clk,
		Logger:  logger,
	}
}

// SmartOrder returns providers of the service type ranked by operational
// priority: healthy, outside any cooldown window, passing the option filters
// and learned-pattern vetoes, descending priority.
func (r *Router) SmartOrder(ctx context.Context, serviceType entity.ServiceType, opts Options) ([]string, error) {
	candidates, err := r.operationalCandidates(ctx, serviceType, opts)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		if candidates[i].HealthScore != candidates[j].HealthScore {
			return candidates[i].HealthScore > candidates[j].HealthScore
		}
		return candidates[i].Provider < candidates[j].Provider
	})

	out := make([]string, 0, len(candidates))
	for _, m := range candidates {
		out = append(out, m.Provider)
	}
	metrics.RecordRoutingDecision(string(serviceType), "smart")
	return out, nil
}

// QualityAwareOrder blends crowd-sourced quality feedback into the ranking.
//
// The minQualityScore filter and the tier acceptance gates apply to the
// combined score BEFORE the preferred-provider boost, so a boost can promote
// a provider within the surviving set but never rescue one the filters
// already dropped.
func (r *Router) QualityAwareOrder(ctx context.Context, serviceType entity.ServiceType, opts QualityOptions) ([]string, error) {
	if !opts.Tier.Valid() {
		return nil, &entity.ValidationError{Field: "qualityTier", Message: fmt.Sprintf("unknown tier %q", opts.Tier)}
	}

	candidates, err := r.operationalCandidates(ctx, serviceType, opts.Options)
	if err != nil {
		return nil, err
	}

	cfg, err := r.Tiers.Get(ctx, opts.Tier)
	if err != nil {
		return nil, fmt.Errorf("get tier config: %w", err)
	}
	if cfg == nil {
		cfg = &entity.QualityTierConfig{TierName: opts.Tier}
	}
	w := cfg.Weight()
	tierExcluded := toSet(cfg.ExcludedProviders)
	preferred := toSet(cfg.PreferredProviders)

	type scored struct {
		provider string
		free     bool
		combined float64
	}
	ranked := make([]scored, 0, len(candidates))

	for _, m := range candidates {
		if tierExcluded[m.Provider] {
			continue
		}

		q, err := r.Quality.Get(ctx, m.Provider, serviceType)
		if err != nil {
			return nil, fmt.Errorf("get quality score: %w", err)
		}
		// unreviewed providers start at the neutral quality baseline and
		// pass acceptance gates, mirroring SuccessRate for untrafficked rows
		qualityScore := float64(entity.InitialQuality)
		acceptanceRate := 100.0
		if q != nil {
			qualityScore = q.AvgQualityScore
			if q.TotalReviews > 0 {
				acceptanceRate = q.AcceptanceRate
			}
		}

		combined := m.HealthScore*(1-w) + qualityScore*w
		if combined < opts.MinQualityScore {
			continue
		}
		if opts.Tier == entity.TierCinematic && acceptanceRate < cinematicAcceptanceGate {
			continue
		}
		if cfg.MinAcceptanceRate > 0 && acceptanceRate < cfg.MinAcceptanceRate {
			continue
		}

		if preferred[m.Provider] {
			combined *= preferredBoost
		}
		ranked = append(ranked, scored{provider: m.Provider, free: m.IsFreeProvider, combined: combined})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if cfg.PrioritizeFree && ranked[i].free != ranked[j].free {
			return ranked[i].free
		}
		if ranked[i].combined != ranked[j].combined {
			return ranked[i].combined > ranked[j].combined
		}
		return ranked[i].provider < ranked[j].provider
	})

	out := make([]string, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.provider)
	}
	metrics.RecordRoutingDecision(string(serviceType), "quality")
	return out, nil
}

// operationalCandidates applies the shared health/cooldown/option/veto filters.
func (r *Router) operationalCandidates(ctx context.Context, serviceType entity.ServiceType, opts Options) ([]*entity.ProviderMetrics, error) {
	if !entity.ValidServiceType(serviceType) {
		return nil, &entity.ValidationError{Field: "serviceType", Message: fmt.Sprintf("unknown service type %q", serviceType)}
	}
	rows, err := r.Metrics.ListByService(ctx, serviceType)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}

	now := r.Clock.Now()
	excluded := toSet(opts.ExcludeProviders)

	out := make([]*entity.ProviderMetrics, 0, len(rows))
	for _, m := range rows {
		if !m.IsHealthy || m.InCooldown(now) {
			continue
		}
		if opts.FreeOnly && !m.IsFreeProvider {
			continue
		}
		if excluded[m.Provider] {
			continue
		}
		if r.Vetoer != nil {
			vetoed, err := r.Vetoer.VetoesProvider(ctx, m.Provider, opts.Params)
			if err != nil {
				// a pattern-store hiccup must not empty the routing pool
				r.Logger.Warn("pattern veto check failed",
					slog.String("provider", m.Provider),
					slog.Any("error", err))
			} else if vetoed {
				continue
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// ProviderStatus returns the raw metrics rows for dashboards, scoped to a
// service type when one is given.
func (r *Router) ProviderStatus(ctx context.Context, serviceType entity.ServiceType) ([]*entity.ProviderMetrics, error) {
	if serviceType == "" {
		rows, err := r.Metrics.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list providers: %w", err)
		}
		return rows, nil
	}
	if !entity.ValidServiceType(serviceType) {
		return nil, &entity.ValidationError{Field: "serviceType", Message: fmt.Sprintf("unknown service type %q", serviceType)}
	}
	rows, err := r.Metrics.ListByService(ctx, serviceType)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return rows, nil
}

// DefaultChain returns the seeded default fallback chain for the service
// type, or nil when none is configured.
func (r *Router) DefaultChain(ctx context.Context, serviceType entity.ServiceType) (*entity.FallbackChain, error) {
	chains, err := r.Chains.ListByService(ctx, serviceType)
	if err != nil {
		return nil, fmt.Errorf("list fallback chains: %w", err)
	}
	for _, c := range chains {
		if c.IsDefault {
			return c, nil
		}
	}
	return nil, nil
}

// ChainByID returns one fallback chain by its ID.
func (r *Router) ChainByID(ctx context.Context, id int64) (*entity.FallbackChain, error) {
	c, err := r.Chains.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get fallback chain: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("fallback chain %d: %w", id, entity.ErrNotFound)
	}
	return c, nil
}

// UpdateQualityFromReview folds one review into the provider's quality score,
// creating the row at the neutral baseline on first review.
func (r *Router) UpdateQualityFromReview(ctx context.Context, provider string, serviceType entity.ServiceType, accepted bool, rating *float64) (*entity.QualityScore, error) {
	if provider == "" {
		return nil, &entity.ValidationError{Field: "provider", Message: "is required"}
	}
	if !entity.ValidServiceType(serviceType) {
		return nil, &entity.ValidationError{Field: "serviceType", Message: "unknown service type"}
	}

	q, err := r.Quality.Get(ctx, provider, serviceType)
	if err != nil {
		return nil, fmt.Errorf("get quality score: %w", err)
	}
	if q == nil {
		q = &entity.QualityScore{
			Provider:        provider,
			ServiceType:     serviceType,
			AvgQualityScore: entity.InitialQuality,
		}
	}
	q.ApplyReview(accepted, rating, r.Clock.Now())
	if err := r.Quality.Upsert(ctx, q); err != nil {
		return nil, fmt.Errorf("upsert quality score: %w", err)
	}
	return q, nil
}

func toSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	s := make(map[string]bool, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}
