package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

type FallbackChainRepo struct{ db *sql.DB }

func NewFallbackChainRepo(db *sql.DB) repository.FallbackChainRepository {
	return &FallbackChainRepo{db}
}

func (r *FallbackChainRepo) GetByID(ctx context.Context, id int64) (*entity.FallbackChain, error) {
	const q = `
SELECT id, service_type, chain_name, providers, condition, is_default
FROM provider_fallback_chains
WHERE id = $1`

	var (
		c             entity.FallbackChain
		providersJSON []byte
		conditionJSON []byte
	)
	err := r.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &c.ServiceType, &c.ChainName, &providersJSON, &conditionJSON, &c.IsDefault)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	if err := json.Unmarshal(providersJSON, &c.Providers); err != nil {
		return nil, fmt.Errorf("decode providers: %w", err)
	}
	if len(conditionJSON) > 0 {
		c.Condition = &entity.ChainCondition{}
		if err := json.Unmarshal(conditionJSON, c.Condition); err != nil {
			return nil, fmt.Errorf("decode condition: %w", err)
		}
	}
	return &c, nil
}

func (r *FallbackChainRepo) ListByService(ctx context.Context, serviceType entity.ServiceType) ([]*entity.FallbackChain, error) {
	const q = `
SELECT id, service_type, chain_name, providers, condition, is_default
FROM provider_fallback_chains
WHERE service_type = $1
ORDER BY is_default DESC, chain_name`

	rows, err := r.db.QueryContext(ctx, q, serviceType)
	if err != nil {
		return nil, fmt.Errorf("ListByService: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.FallbackChain, 0, 5)
	for rows.Next() {
		var (
			c             entity.FallbackChain
			providersJSON []byte
			conditionJSON []byte
		)
		if err := rows.Scan(&c.ID, &c.ServiceType, &c.ChainName, &providersJSON, &conditionJSON, &c.IsDefault); err != nil {
			return nil, fmt.Errorf("scan fallback chain: %w", err)
		}
		if err := json.Unmarshal(providersJSON, &c.Providers); err != nil {
			return nil, fmt.Errorf("decode providers: %w", err)
		}
		if len(conditionJSON) > 0 {
			c.Condition = &entity.ChainCondition{}
			if err := json.Unmarshal(conditionJSON, c.Condition); err != nil {
				return nil, fmt.Errorf("decode condition: %w", err)
			}
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *FallbackChainRepo) Create(ctx context.Context, c *entity.FallbackChain) error {
	const q = `
INSERT INTO provider_fallback_chains (service_type, chain_name, providers, condition, is_default)
VALUES ($1,$2,$3,$4,$5)
RETURNING id`

	providersJSON, err := json.Marshal(c.Providers)
	if err != nil {
		return fmt.Errorf("encode providers: %w", err)
	}
	var conditionJSON []byte
	if c.Condition != nil {
		conditionJSON, err = json.Marshal(c.Condition)
		if err != nil {
			return fmt.Errorf("encode condition: %w", err)
		}
	}

	err = r.db.QueryRowContext(ctx, q,
		c.ServiceType, c.ChainName, providersJSON, conditionJSON, c.IsDefault,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *FallbackChainRepo) Count(ctx context.Context) (int, error) {
	const q = `SELECT COUNT(*) FROM provider_fallback_chains`

	var n int
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count: %w", err)
	}
	return n, nil
}
