package repository

import (
	"context"

	"provider-mesh/internal/domain/entity"
)

// FallbackChainRepository persists static routing templates. Chains are
// seeded once and read-only at request time.
type FallbackChainRepository interface {
	// GetByID returns the chain, or nil if no chain has that ID.
	GetByID(ctx context.Context, id int64) (*entity.FallbackChain, error)
	ListByService(ctx context.Context, serviceType entity.ServiceType) ([]*entity.FallbackChain, error)
	Create(ctx context.Context, c *entity.FallbackChain) error
	Count(ctx context.Context) (int, error)
}

// QualityScoreRepository persists crowd-sourced quality feedback per
// provider×serviceType.
type QualityScoreRepository interface {
	// Get returns the score row, or nil if the provider has no reviews yet.
	Get(ctx context.Context, provider string, serviceType entity.ServiceType) (*entity.QualityScore, error)
	ListByService(ctx context.Context, serviceType entity.ServiceType) ([]*entity.QualityScore, error)
	Upsert(ctx context.Context, q *entity.QualityScore) error
}

// QualityTierRepository persists the static per-tier routing configuration.
type QualityTierRepository interface {
	// Get returns the tier config, or nil if the tier is not configured.
	Get(ctx context.Context, tier entity.QualityTier) (*entity.QualityTierConfig, error)
	Upsert(ctx context.Context, c *entity.QualityTierConfig) error
}
