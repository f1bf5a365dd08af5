package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

type ErrorPatternRepo struct{ db *sql.DB }

func NewErrorPatternRepo(db *sql.DB) repository.ErrorPatternRepository {
	return &ErrorPatternRepo{db}
}

const errorPatternColumns = `
    id, provider, service_type, pattern_type, pattern_key,
    occurrence_count, confidence_score, suggested_fix, is_active,
    first_seen_at, last_seen_at`

func scanErrorPattern(s interface {
	Scan(dest ...any) error
}) (*entity.ErrorPattern, error) {
	var p entity.ErrorPattern
	err := s.Scan(
		&p.ID, &p.Provider, &p.ServiceType, &p.PatternType, &p.PatternKey,
		&p.OccurrenceCount, &p.ConfidenceScore, &p.SuggestedFix, &p.IsActive,
		&p.FirstSeenAt, &p.LastSeenAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ErrorPatternRepo) Get(ctx context.Context, provider, patternKey string) (*entity.ErrorPattern, error) {
	const q = `
SELECT` + errorPatternColumns + `
FROM provider_error_patterns
WHERE provider = $1 AND pattern_key = $2`

	p, err := scanErrorPattern(r.db.QueryRowContext(ctx, q, provider, patternKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return p, nil
}

func (r *ErrorPatternRepo) ListActiveByProvider(ctx context.Context, provider string) ([]*entity.ErrorPattern, error) {
	const q = `
SELECT` + errorPatternColumns + `
FROM provider_error_patterns
WHERE provider = $1 AND is_active = TRUE
ORDER BY confidence_score DESC, pattern_key`

	rows, err := r.db.QueryContext(ctx, q, provider)
	if err != nil {
		return nil, fmt.Errorf("ListActiveByProvider: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.ErrorPattern, 0, 10)
	for rows.Next() {
		p, err := scanErrorPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ErrorPatternRepo) Upsert(ctx context.Context, p *entity.ErrorPattern) error {
	const q = `
INSERT INTO provider_error_patterns (
    provider, service_type, pattern_type, pattern_key,
    occurrence_count, confidence_score, suggested_fix, is_active,
    first_seen_at, last_seen_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (provider, pattern_key) DO UPDATE SET
    occurrence_count = EXCLUDED.occurrence_count,
    confidence_score = EXCLUDED.confidence_score,
    suggested_fix    = EXCLUDED.suggested_fix,
    is_active        = EXCLUDED.is_active,
    last_seen_at     = EXCLUDED.last_seen_at
RETURNING id`

	err := r.db.QueryRowContext(ctx, q,
		p.Provider, p.ServiceType, p.PatternType, p.PatternKey,
		p.OccurrenceCount, p.ConfidenceScore, p.SuggestedFix, p.IsActive,
		p.FirstSeenAt, p.LastSeenAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	return nil
}
