package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

type QualityScoreRepo struct{ db *sql.DB }

func NewQualityScoreRepo(db *sql.DB) repository.QualityScoreRepository {
	return &QualityScoreRepo{db}
}

const qualityScoreColumns = `
    provider, service_type, total_reviews, total_accepted, total_rejected,
    acceptance_rate, avg_user_rating, avg_quality_score, quality_weight, updated_at`

func scanQualityScore(s interface {
	Scan(dest ...any) error
}) (*entity.QualityScore, error) {
	var q entity.QualityScore
	err := s.Scan(
		&q.Provider, &q.ServiceType, &q.TotalReviews, &q.TotalAccepted, &q.TotalRejected,
		&q.AcceptanceRate, &q.AvgUserRating, &q.AvgQualityScore, &q.QualityWeight, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QualityScoreRepo) Get(ctx context.Context, provider string, serviceType entity.ServiceType) (*entity.QualityScore, error) {
	const q = `
SELECT` + qualityScoreColumns + `
FROM provider_quality_scores
WHERE provider = $1 AND service_type = $2`

	score, err := scanQualityScore(r.db.QueryRowContext(ctx, q, provider, serviceType))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return score, nil
}

func (r *QualityScoreRepo) ListByService(ctx context.Context, serviceType entity.ServiceType) ([]*entity.QualityScore, error) {
	const q = `
SELECT` + qualityScoreColumns + `
FROM provider_quality_scores
WHERE service_type = $1
ORDER BY provider`

	rows, err := r.db.QueryContext(ctx, q, serviceType)
	if err != nil {
		return nil, fmt.Errorf("ListByService: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.QualityScore, 0, 20)
	for rows.Next() {
		score, err := scanQualityScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quality score: %w", err)
		}
		out = append(out, score)
	}
	return out, rows.Err()
}

func (r *QualityScoreRepo) Upsert(ctx context.Context, q *entity.QualityScore) error {
	const stmt = `
INSERT INTO provider_quality_scores (` + qualityScoreColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (provider, service_type) DO UPDATE SET
    total_reviews     = EXCLUDED.total_reviews,
    total_accepted    = EXCLUDED.total_accepted,
    total_rejected    = EXCLUDED.total_rejected,
    acceptance_rate   = EXCLUDED.acceptance_rate,
    avg_user_rating   = EXCLUDED.avg_user_rating,
    avg_quality_score = EXCLUDED.avg_quality_score,
    quality_weight    = EXCLUDED.quality_weight,
    updated_at        = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, stmt,
		q.Provider, q.ServiceType, q.TotalReviews, q.TotalAccepted, q.TotalRejected,
		q.AcceptanceRate, q.AvgUserRating, q.AvgQualityScore, q.QualityWeight, q.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
