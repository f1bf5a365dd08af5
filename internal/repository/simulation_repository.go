package repository

import (
	"context"

	"provider-mesh/internal/domain/entity"
)

// SimulationRepository persists failure simulations. The durable rows back
// the in-memory active set so running windows survive process restarts.
type SimulationRepository interface {
	Create(ctx context.Context, s *entity.FailureSimulation) error
	Update(ctx context.Context, s *entity.FailureSimulation) error
	// Get returns the simulation, or nil if unknown.
	Get(ctx context.Context, id string) (*entity.FailureSimulation, error)
	ListRunning(ctx context.Context) ([]*entity.FailureSimulation, error)
}
