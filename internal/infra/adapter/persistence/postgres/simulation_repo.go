package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/repository"
)

type SimulationRepo struct{ db *sql.DB }

func NewSimulationRepo(db *sql.DB) repository.SimulationRepository {
	return &SimulationRepo{db}
}

const simulationColumns = `
    id, target_provider, target_service_type, failure_type, error_rate,
    status, started_at, ends_at, duration_seconds,
    detection_time_seconds, remediation_time_seconds,
    passed_detection, passed_remediation, overall_score`

func scanSimulation(s interface {
	Scan(dest ...any) error
}) (*entity.FailureSimulation, error) {
	var (
		sim             entity.FailureSimulation
		durationSeconds int64
	)
	err := s.Scan(
		&sim.ID, &sim.TargetProvider, &sim.TargetServiceType, &sim.FailureType, &sim.ErrorRate,
		&sim.Status, &sim.StartedAt, &sim.EndsAt, &durationSeconds,
		&sim.DetectionTimeSeconds, &sim.RemediationTimeSeconds,
		&sim.PassedDetection, &sim.PassedRemediation, &sim.OverallScore,
	)
	if err != nil {
		return nil, err
	}
	sim.ScheduledDuration = time.Duration(durationSeconds) * time.Second
	return &sim, nil
}

func (r *SimulationRepo) Create(ctx context.Context, s *entity.FailureSimulation) error {
	const q = `
INSERT INTO failure_simulations (` + simulationColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`

	_, err := r.db.ExecContext(ctx, q,
		s.ID, s.TargetProvider, s.TargetServiceType, s.FailureType, s.ErrorRate,
		s.Status, s.StartedAt, s.EndsAt, int64(s.ScheduledDuration/time.Second),
		s.DetectionTimeSeconds, s.RemediationTimeSeconds,
		s.PassedDetection, s.PassedRemediation, s.OverallScore,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *SimulationRepo) Update(ctx context.Context, s *entity.FailureSimulation) error {
	const q = `
UPDATE failure_simulations SET
    status                   = $2,
    ends_at                  = $3,
    detection_time_seconds   = $4,
    remediation_time_seconds = $5,
    passed_detection         = $6,
    passed_remediation       = $7,
    overall_score            = $8
WHERE id = $1`

	res, err := r.db.ExecContext(ctx, q,
		s.ID, s.Status, s.EndsAt,
		s.DetectionTimeSeconds, s.RemediationTimeSeconds,
		s.PassedDetection, s.PassedRemediation, s.OverallScore,
	)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("Update: no rows affected")
	}
	return nil
}

func (r *SimulationRepo) Get(ctx context.Context, id string) (*entity.FailureSimulation, error) {
	const q = `
SELECT` + simulationColumns + `
FROM failure_simulations
WHERE id = $1`

	sim, err := scanSimulation(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return sim, nil
}

func (r *SimulationRepo) ListRunning(ctx context.Context) ([]*entity.FailureSimulation, error) {
	const q = `
SELECT` + simulationColumns + `
FROM failure_simulations
WHERE status = $1
ORDER BY started_at ASC`

	rows, err := r.db.QueryContext(ctx, q, entity.SimulationRunning)
	if err != nil {
		return nil, fmt.Errorf("ListRunning: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]*entity.FailureSimulation, 0, 5)
	for rows.Next() {
		sim, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		out = append(out, sim)
	}
	return out, rows.Err()
}
