// Package simulation is the chaos-testing harness: it tells the request path
// to synthetically fail for a target provider for a bounded window, then
// scores how well the remediation loop detected and repaired the failure.
package simulation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/observability/metrics"
	"provider-mesh/internal/repository"
	"provider-mesh/pkg/clock"
)

// Simulator owns the in-memory active set consulted by the request-path hot
// check, backed by the durable store so running windows survive restarts.
type Simulator struct {
	Simulations repository.SimulationRepository
	Executions  repository.RemediationExecutionRepository
	Clock       clock.Clock
	Logger      *slog.Logger

	mu     sync.RWMutex
	active map[string]*entity.FailureSimulation

	// rnd is the injection dice roll, replaceable in tests.
	rnd func() float64
}

// NewSimulator wires a Simulator with its stores.
func NewSimulator(
	simulations repository.SimulationRepository,
	executions repository.RemediationExecutionRepository,
	clk clock.Clock,
	logger *slog.Logger,
) *Simulator {
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		Simulations: simulations,
		Executions:  executions,
		Clock:       clk,
		Logger:      logger,
		active:      make(map[string]*entity.FailureSimulation),
		rnd:         rand.Float64,
	}
}

// Rehydrate loads running simulations from the durable store into the active
// set. Called once at startup; windows are absolute timestamps, so a restart
// mid-window resumes injection.
func (s *Simulator) Rehydrate(ctx context.Context) error {
	running, err := s.Simulations.ListRunning(ctx)
	if err != nil {
		return fmt.Errorf("list running simulations: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sim := range running {
		s.active[sim.ID] = sim
	}
	if len(running) > 0 {
		s.Logger.Info("simulations rehydrated", slog.Int("count", len(running)))
	}
	return nil
}

// Start creates and registers a running simulation.
func (s *Simulator) Start(ctx context.Context, targetProvider string, targetServiceType entity.ServiceType, failureType string, errorRate float64, duration time.Duration) (*entity.FailureSimulation, error) {
	now := s.Clock.Now()
	sim := &entity.FailureSimulation{
		ID:                uuid.NewString(),
		TargetProvider:    targetProvider,
		TargetServiceType: targetServiceType,
		FailureType:       failureType,
		ErrorRate:         errorRate,
		Status:            entity.SimulationRunning,
		StartedAt:         now,
		EndsAt:            now.Add(duration),
		ScheduledDuration: duration,
	}
	if err := sim.Validate(); err != nil {
		return nil, err
	}
	if err := s.Simulations.Create(ctx, sim); err != nil {
		return nil, fmt.Errorf("create simulation: %w", err)
	}

	s.mu.Lock()
	s.active[sim.ID] = sim
	s.mu.Unlock()

	s.Logger.Info("failure simulation started",
		slog.String("simulation", sim.ID),
		slog.String("target", targetProvider),
		slog.String("failure_type", failureType),
		slog.Float64("error_rate", errorRate),
		slog.Time("ends_at", sim.EndsAt))
	return sim, nil
}

// Stop cancels a running simulation early, immediately removing it from the
// injection set and scoring the window that did elapse.
func (s *Simulator) Stop(ctx context.Context, simulationID string) (*entity.FailureSimulation, error) {
	s.mu.Lock()
	sim, ok := s.active[simulationID]
	if ok {
		delete(s.active, simulationID)
	}
	s.mu.Unlock()

	if !ok {
		stored, err := s.Simulations.Get(ctx, simulationID)
		if err != nil {
			return nil, fmt.Errorf("get simulation: %w", err)
		}
		if stored == nil {
			return nil, fmt.Errorf("simulation %q: %w", simulationID, entity.ErrNotFound)
		}
		return stored, nil
	}
	return sim, s.complete(ctx, sim)
}

// ShouldInjectFailure is the request-path hot check: inject with probability
// errorRate when an active, unexpired simulation targets the provider. Reads
// only the in-memory set.
func (s *Simulator) ShouldInjectFailure(provider string, serviceType entity.ServiceType) (bool, string) {
	now := s.Clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sim := range s.active {
		if sim.Expired(now) || !sim.Targets(provider, serviceType) {
			continue
		}
		if s.rnd() < sim.ErrorRate {
			return true, sim.FailureType
		}
	}
	return false, ""
}

// SweepExpired completes every active simulation whose window has elapsed.
// Called periodically by the host alongside the remediation poll.
func (s *Simulator) SweepExpired(ctx context.Context) error {
	now := s.Clock.Now()

	s.mu.Lock()
	var expired []*entity.FailureSimulation
	for id, sim := range s.active {
		if sim.Expired(now) {
			expired = append(expired, sim)
			delete(s.active, id)
		}
	}
	s.mu.Unlock()

	for _, sim := range expired {
		if err := s.complete(ctx, sim); err != nil {
			return err
		}
	}
	return nil
}

// complete scores the simulation from the remediation executions created
// inside its window: the first execution is the detection event, the first
// successful one the repair event.
func (s *Simulator) complete(ctx context.Context, sim *entity.FailureSimulation) error {
	end := sim.EndsAt
	if now := s.Clock.Now(); now.Before(end) {
		end = now // stopped early
	}
	execs, err := s.Executions.ListBetween(ctx, sim.StartedAt, end)
	if err != nil {
		return fmt.Errorf("list executions: %w", err)
	}

	var detection, remediation *float64
	for _, x := range execs {
		if !sim.Targets(x.Provider, x.ServiceType) {
			continue
		}
		if detection == nil {
			d := x.RemediationStartedAt.Sub(sim.StartedAt).Seconds()
			detection = &d
		}
		if remediation == nil && x.WasSuccessful {
			at := x.RemediationCompletedAt
			if x.RecoveryConfirmedAt != nil {
				at = x.RecoveryConfirmedAt
			}
			if at != nil {
				r := at.Sub(sim.StartedAt).Seconds()
				remediation = &r
			}
		}
		if detection != nil && remediation != nil {
			break
		}
	}

	sim.Score(detection, remediation)
	sim.Status = entity.SimulationCompleted
	if err := s.Simulations.Update(ctx, sim); err != nil {
		return fmt.Errorf("update simulation: %w", err)
	}

	metrics.SetSimulationScore(sim.TargetProvider, string(sim.TargetServiceType), float64(sim.OverallScore))
	s.Logger.Info("failure simulation completed",
		slog.String("simulation", sim.ID),
		slog.Bool("passed_detection", sim.PassedDetection),
		slog.Bool("passed_remediation", sim.PassedRemediation),
		slog.Int("overall_score", sim.OverallScore))
	return nil
}

// Get returns a simulation by id, preferring the live in-memory copy.
func (s *Simulator) Get(ctx context.Context, simulationID string) (*entity.FailureSimulation, error) {
	s.mu.RLock()
	sim, ok := s.active[simulationID]
	s.mu.RUnlock()
	if ok {
		return sim, nil
	}
	stored, err := s.Simulations.Get(ctx, simulationID)
	if err != nil {
		return nil, fmt.Errorf("get simulation: %w", err)
	}
	if stored == nil {
		return nil, fmt.Errorf("simulation %q: %w", simulationID, entity.ErrNotFound)
	}
	return stored, nil
}
