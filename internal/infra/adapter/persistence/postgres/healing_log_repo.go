package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

type HealingLogRepo struct{ db *sql.DB }

func NewHealingLogRepo(db *sql.DB) repository.HealingLogRepository {
	return &HealingLogRepo{db}
}

func (r *HealingLogRepo) Append(ctx context.Context, e *entity.HealingActionEntry) error {
	const q = `
INSERT INTO healing_actions_log (provider, service_type, action, detail, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id`

	err := r.db.QueryRowContext(ctx, q,
		e.Provider, e.ServiceType, e.Action, e.Detail, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

func (r *HealingLogRepo) ListSince(ctx context.Context, since time.Time) ([]*entity.HealingActionEntry, error) {
	const q = `
SELECT id, provider, service_type, action, detail, created_at
FROM healing_actions_log
WHERE created_at >= $1
ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("ListSince: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.HealingActionEntry, 0, 50)
	for rows.Next() {
		var e entity.HealingActionEntry
		if err := rows.Scan(&e.ID, &e.Provider, &e.ServiceType, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan healing entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
