package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

type RequestLogRepo struct{ db *sql.DB }

func NewRequestLogRepo(db *sql.DB) repository.RequestLogRepository {
	return &RequestLogRepo{db}
}

const requestRecordColumns = `
    id, provider, service_type, request_id, status, latency_ms,
    error_code, error_message, cost_incurred, campaign_id, content_id, created_at`

func scanRequestRecord(rows *sql.Rows) (*entity.RequestRecord, error) {
	var rec entity.RequestRecord
	err := rows.Scan(
		&rec.ID, &rec.Provider, &rec.ServiceType, &rec.RequestID, &rec.Status, &rec.LatencyMs,
		&rec.ErrorCode, &rec.ErrorMessage, &rec.CostIncurred, &rec.CampaignID, &rec.ContentID, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RequestLogRepo) Append(ctx context.Context, rec *entity.RequestRecord) (bool, error) {
	// The request ID is the adapter's idempotency key: a retried report
	// conflicts here and returns no row instead of a second insert.
	const q = `
INSERT INTO provider_requests (
    provider, service_type, request_id, status, latency_ms,
    error_code, error_message, cost_incurred, campaign_id, content_id, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (provider, request_id) DO NOTHING
RETURNING id`

	err := r.db.QueryRowContext(ctx, q,
		rec.Provider, rec.ServiceType, rec.RequestID, rec.Status, rec.LatencyMs,
		rec.ErrorCode, rec.ErrorMessage, rec.CostIncurred, rec.CampaignID, rec.ContentID, rec.CreatedAt,
	).Scan(&rec.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("Append: %w", err)
	}
	return true, nil
}

func (r *RequestLogRepo) ListSince(ctx context.Context, provider string, serviceType entity.ServiceType, since time.Time) ([]*entity.RequestRecord, error) {
	const q = `
SELECT` + requestRecordColumns + `
FROM provider_requests
WHERE provider = $1 AND service_type = $2 AND created_at >= $3
ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, provider, serviceType, since)
	if err != nil {
		return nil, fmt.Errorf("ListSince: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRequestRecords(rows)
}

func (r *RequestLogRepo) Tail(ctx context.Context, provider string, serviceType entity.ServiceType, n int) ([]*entity.RequestRecord, error) {
	const q = `
SELECT` + requestRecordColumns + `
FROM provider_requests
WHERE provider = $1 AND service_type = $2
ORDER BY created_at DESC, id DESC
LIMIT $3`

	rows, err := r.db.QueryContext(ctx, q, provider, serviceType, n)
	if err != nil {
		return nil, fmt.Errorf("Tail: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRequestRecords(rows)
}

func (r *RequestLogRepo) ListFailedSince(ctx context.Context, provider string, serviceType entity.ServiceType, since time.Time) ([]*entity.RequestRecord, error) {
	const q = `
SELECT` + requestRecordColumns + `
FROM provider_requests
WHERE provider = $1 AND service_type = $2 AND status = $3 AND created_at >= $4
ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, provider, serviceType, entity.RequestFailed, since)
	if err != nil {
		return nil, fmt.Errorf("ListFailedSince: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRequestRecords(rows)
}

func collectRequestRecords(rows *sql.Rows) ([]*entity.RequestRecord, error) {
	out := make([]*entity.RequestRecord, 0, 100)
	for rows.Next() {
		rec, err := scanRequestRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
