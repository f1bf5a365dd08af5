package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

type QualityTierRepo struct{ db *sql.DB }

func NewQualityTierRepo(db *sql.DB) repository.QualityTierRepository {
	return &QualityTierRepo{db}
}

func (r *QualityTierRepo) Get(ctx context.Context, tier entity.QualityTier) (*entity.QualityTierConfig, error) {
	const q = `
SELECT tier_name, quality_weight_override, preferred_providers, excluded_providers,
       prioritize_free, min_acceptance_rate
FROM quality_tier_configs
WHERE tier_name = $1`

	var (
		c             entity.QualityTierConfig
		preferredJSON []byte
		excludedJSON  []byte
	)
	err := r.db.QueryRowContext(ctx, q, tier).Scan(
		&c.TierName, &c.QualityWeightOverride, &preferredJSON, &excludedJSON,
		&c.PrioritizeFree, &c.MinAcceptanceRate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	if len(preferredJSON) > 0 {
		if err := json.Unmarshal(preferredJSON, &c.PreferredProviders); err != nil {
			return nil, fmt.Errorf("decode preferred providers: %w", err)
		}
	}
	if len(excludedJSON) > 0 {
		if err := json.Unmarshal(excludedJSON, &c.ExcludedProviders); err != nil {
			return nil, fmt.Errorf("decode excluded providers: %w", err)
		}
	}
	return &c, nil
}

func (r *QualityTierRepo) Upsert(ctx context.Context, c *entity.QualityTierConfig) error {
	const q = `
INSERT INTO quality_tier_configs (
    tier_name, quality_weight_override, preferred_providers, excluded_providers,
    prioritize_free, min_acceptance_rate
) VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (tier_name) DO UPDATE SET
    quality_weight_override = EXCLUDED.quality_weight_override,
    preferred_providers     = EXCLUDED.preferred_providers,
    excluded_providers      = EXCLUDED.excluded_providers,
    prioritize_free         = EXCLUDED.prioritize_free,
    min_acceptance_rate     = EXCLUDED.min_acceptance_rate`

	preferredJSON, err := json.Marshal(c.PreferredProviders)
	if err != nil {
		return fmt.Errorf("encode preferred providers: %w", err)
	}
	excludedJSON, err := json.Marshal(c.ExcludedProviders)
	if err != nil {
		return fmt.Errorf("encode excluded providers: %w", err)
	}

	_, err = r.db.ExecContext(ctx, q,
		c.TierName, c.QualityWeightOverride, preferredJSON, excludedJSON,
		c.PrioritizeFree, c.MinAcceptanceRate,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
