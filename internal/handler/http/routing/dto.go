package routing

import (
	"time"

	"provider-mesh/internal/domain/entity"
)

type ChainDTO struct {
	ID          int64                  `json:"id"`
	ServiceType string                 `json:"service_type"`
	ChainName   string                 `json:"chain_name"`
	Providers   []string               `json:"providers"`
	Condition   *entity.ChainCondition `json:"condition,omitempty"`
	IsDefault   bool                   `json:"is_default"`
}

func toChainDTO(c *entity.FallbackChain) ChainDTO {
	return ChainDTO{
		ID:          c.ID,
		ServiceType: string(c.ServiceType),
		ChainName:   c.ChainName,
		Providers:   c.Providers,
		Condition:   c.Condition,
		IsDefault:   c.IsDefault,
	}
}

type ProviderStatusDTO struct {
	Provider         string     `json:"provider"`
	ServiceType      string     `json:"service_type"`
	IsFreeProvider   bool       `json:"is_free_provider"`
	HealthScore      float64    `json:"health_score"`
	IsHealthy        bool       `json:"is_healthy"`
	Priority         int        `json:"priority"`
	TotalRequests    int64      `json:"total_requests"`
	SuccessRate      float64    `json:"success_rate"`
	AvgLatencyMs     float64    `json:"avg_latency_ms"`
	RateLimitHits    int        `json:"rate_limit_hits"`
	RateLimitResetAt *time.Time `json:"rate_limit_reset_at,omitempty"`
	TotalCost        float64    `json:"total_cost"`
	LastError        string     `json:"last_error,omitempty"`
}

func toStatusDTO(m *entity.ProviderMetrics) ProviderStatusDTO {
	return ProviderStatusDTO{
		Provider:         m.Provider,
		ServiceType:      string(m.ServiceType),
		IsFreeProvider:   m.IsFreeProvider,
		HealthScore:      m.HealthScore,
		IsHealthy:        m.IsHealthy,
		Priority:         m.Priority,
		TotalRequests:    m.TotalRequests,
		SuccessRate:      m.SuccessRate(),
		AvgLatencyMs:     m.AvgLatencyMs,
		RateLimitHits:    m.RateLimitHits,
		RateLimitResetAt: m.RateLimitResetAt,
		TotalCost:        m.TotalCost,
		LastError:        m.LastError,
	}
}
