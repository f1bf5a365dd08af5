package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

type ProviderMetricsRepo struct{ db *sql.DB }

func NewProviderMetricsRepo(db *sql.DB) repository.ProviderMetricsRepository {
	return &ProviderMetricsRepo{db}
}

const providerMetricsColumns = `
    provider, service_type, is_free_provider, cost_per_request, base_priority,
    success_count, failure_count, total_requests, avg_latency_ms,
    health_score, is_healthy, priority,
    rate_limit_hits, rate_limit_reset_at,
    total_cost, last_success_at, last_failure_at, last_error, version`

func scanProviderMetrics(s interface {
	Scan(dest ...any) error
}) (*entity.ProviderMetrics, error) {
	var m entity.ProviderMetrics
	err := s.Scan(
		&m.Provider, &m.ServiceType, &m.IsFreeProvider, &m.CostPerRequest, &m.BasePriority,
		&m.SuccessCount, &m.FailureCount, &m.TotalRequests, &m.AvgLatencyMs,
		&m.HealthScore, &m.IsHealthy, &m.Priority,
		&m.RateLimitHits, &m.RateLimitResetAt,
		&m.TotalCost, &m.LastSuccessAt, &m.LastFailureAt, &m.LastError, &m.Version,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ProviderMetricsRepo) Get(ctx context.Context, provider string, serviceType entity.ServiceType) (*entity.ProviderMetrics, error) {
	const q = `
SELECT` + providerMetricsColumns + `
FROM provider_metrics
WHERE provider = $1 AND service_type = $2`

	m, err := scanProviderMetrics(r.db.QueryRowContext(ctx, q, provider, serviceType))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return m, nil
}

func (r *ProviderMetricsRepo) ListByService(ctx context.Context, serviceType entity.ServiceType) ([]*entity.ProviderMetrics, error) {
	const q = `
SELECT` + providerMetricsColumns + `
FROM provider_metrics
WHERE service_type = $1
ORDER BY provider`

	rows, err := r.db.QueryContext(ctx, q, serviceType)
	if err != nil {
		return nil, fmt.Errorf("ListByService: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectProviderMetrics(rows)
}

func (r *ProviderMetricsRepo) ListAll(ctx context.Context) ([]*entity.ProviderMetrics, error) {
	const q = `
SELECT` + providerMetricsColumns + `
FROM provider_metrics
ORDER BY service_type, provider`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListAll: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectProviderMetrics(rows)
}

func collectProviderMetrics(rows *sql.Rows) ([]*entity.ProviderMetrics, error) {
	out := make([]*entity.ProviderMetrics, 0, 20)
	for rows.Next() {
		m, err := scanProviderMetrics(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider metrics: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ProviderMetricsRepo) Create(ctx context.Context, m *entity.ProviderMetrics) error {
	const q = `
INSERT INTO provider_metrics (` + providerMetricsColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	_, err := r.db.ExecContext(ctx, q,
		m.Provider, m.ServiceType, m.IsFreeProvider, m.CostPerRequest, m.BasePriority,
		m.SuccessCount, m.FailureCount, m.TotalRequests, m.AvgLatencyMs,
		m.HealthScore, m.IsHealthy, m.Priority,
		m.RateLimitHits, m.RateLimitResetAt,
		m.TotalCost, m.LastSuccessAt, m.LastFailureAt, m.LastError, m.Version,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// UpdateAtomic locks the row for the duration of the transaction so an
// outcome report and a remediation action racing on the same provider
// serialize instead of losing updates.
func (r *ProviderMetricsRepo) UpdateAtomic(ctx context.Context, provider string, serviceType entity.ServiceType, mutate func(*entity.ProviderMetrics) error) (*entity.ProviderMetrics, error) {
	const selectQ = `
SELECT` + providerMetricsColumns + `
FROM provider_metrics
WHERE provider = $1 AND service_type = $2
FOR UPDATE`

	const updateQ = `
UPDATE provider_metrics SET
    is_free_provider = $3, cost_per_request = $4, base_priority = $5,
    success_count = $6, failure_count = $7, total_requests = $8, avg_latency_ms = $9,
    health_score = $10, is_healthy = $11, priority = $12,
    rate_limit_hits = $13, rate_limit_reset_at = $14,
    total_cost = $15, last_success_at = $16, last_failure_at = $17, last_error = $18,
    version = $19
WHERE provider = $1 AND service_type = $2`

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("UpdateAtomic: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	m, err := scanProviderMetrics(tx.QueryRowContext(ctx, selectQ, provider, serviceType))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("provider %s/%s: %w", provider, serviceType, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("UpdateAtomic: select: %w", err)
	}

	if err := mutate(m); err != nil {
		return nil, err
	}
	m.Version++

	res, err := tx.ExecContext(ctx, updateQ,
		m.Provider, m.ServiceType,
		m.IsFreeProvider, m.CostPerRequest, m.BasePriority,
		m.SuccessCount, m.FailureCount, m.TotalRequests, m.AvgLatencyMs,
		m.HealthScore, m.IsHealthy, m.Priority,
		m.RateLimitHits, m.RateLimitResetAt,
		m.TotalCost, m.LastSuccessAt, m.LastFailureAt, m.LastError,
		m.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("UpdateAtomic: update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("UpdateAtomic: no rows affected")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("UpdateAtomic: commit: %w", err)
	}
	return m, nil
}
