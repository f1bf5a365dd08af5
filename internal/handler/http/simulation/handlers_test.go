package simulation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"provider-mesh/internal/domain/entity"
	handler "provider-mesh/internal/handler/http/simulation"
	simulationUC "provider-mesh/internal/usecase/simulation"
	"provider-mesh/pkg/clock"
)

type stubSimRepo struct {
	stored map[string]*entity.FailureSimulation
}

func newStubSimRepo() *stubSimRepo {
	return &stubSimRepo{stored: make(map[string]*entity.FailureSimulation)}
}

func (s *stubSimRepo) Create(_ context.Context, sim *entity.FailureSimulation) error {
	s.stored[sim.ID] = sim
	return nil
}
func (s *stubSimRepo) Update(_ context.Context, sim *entity.FailureSimulation) error {
	s.stored[sim.ID] = sim
	return nil
}
func (s *stubSimRepo) Get(_ context.Context, id string) (*entity.FailureSimulation, error) {
	return s.stored[id], nil
}
func (s *stubSimRepo) ListRunning(_ context.Context) ([]*entity.FailureSimulation, error) {
	out := make([]*entity.FailureSimulation, 0, len(s.stored))
	for _, sim := range s.stored {
		if sim.Status == entity.SimulationRunning {
			out = append(out, sim)
		}
	}
	return out, nil
}

type stubExecRepo struct{}

func (s *stubExecRepo) Create(_ context.Context, _ *entity.RemediationExecution) error { return nil }
func (s *stubExecRepo) Update(_ context.Context, _ *entity.RemediationExecution) error { return nil }
func (s *stubExecRepo) Get(_ context.Context, _ string) (*entity.RemediationExecution, error) {
	return nil, nil
}
func (s *stubExecRepo) LastByRule(_ context.Context, _ string) (*entity.RemediationExecution, error) {
	return nil, nil
}
func (s *stubExecRepo) CountByRuleSince(_ context.Context, _ string, _ time.Time) (int, error) {
	return 0, nil
}
func (s *stubExecRepo) ListBetween(_ context.Context, _, _ time.Time) ([]*entity.RemediationExecution, error) {
	return nil, nil
}
func (s *stubExecRepo) ListPending(_ context.Context) ([]*entity.RemediationExecution, error) {
	return nil, nil
}
func (s *stubExecRepo) ListUnconfirmed(_ context.Context) ([]*entity.RemediationExecution, error) {
	return nil, nil
}

func newSimulator(repo *stubSimRepo) *simulationUC.Simulator {
	clk := clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	return simulationUC.NewSimulator(repo, &stubExecRepo{}, clk, nil)
}

func startSimulation(t *testing.T, sim *simulationUC.Simulator) string {
	t.Helper()
	s, err := sim.Start(context.Background(), "runway", entity.ServiceVideo, "timeout", 0.5, 10*time.Minute)
	if err != nil {
		t.Fatalf("start simulation: %v", err)
	}
	return s.ID
}

func TestStartHandler(t *testing.T) {
	repo := newStubSimRepo()
	h := handler.StartHandler{Svc: newSimulator(repo)}

	body := `{
		"target_provider": "runway",
		"target_service_type": "video",
		"failure_type": "rate_limit",
		"error_rate": 0.8,
		"duration_minutes": 10
	}`
	req := httptest.NewRequest(http.MethodPost, "/v1/simulations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status code = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var out handler.SimulationDTO
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ID == "" || out.Status != string(entity.SimulationRunning) {
		t.Errorf("simulation = %+v, want running with id", out)
	}
	if out.DurationSeconds != 600 {
		t.Errorf("duration = %d, want 600", out.DurationSeconds)
	}
	if _, ok := repo.stored[out.ID]; !ok {
		t.Error("simulation not persisted")
	}
}

func TestStartHandler_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "error rate above 1", body: `{"failure_type": "timeout", "error_rate": 1.5, "duration_minutes": 5}`},
		{name: "error rate zero", body: `{"failure_type": "timeout", "error_rate": 0, "duration_minutes": 5}`},
		{name: "missing duration", body: `{"failure_type": "timeout", "error_rate": 0.5}`},
		{name: "unknown service type", body: `{"target_service_type": "bogus", "failure_type": "timeout", "error_rate": 0.5, "duration_minutes": 5}`},
		{name: "malformed json", body: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.StartHandler{Svc: newSimulator(newStubSimRepo())}
			req := httptest.NewRequest(http.MethodPost, "/v1/simulations", strings.NewReader(tt.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("status code = %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestGetHandler(t *testing.T) {
	repo := newStubSimRepo()
	sim := newSimulator(repo)
	id := startSimulation(t, sim)
	h := handler.GetHandler{Svc: sim}

	req := httptest.NewRequest(http.MethodGet, "/v1/simulations/"+id, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	var out handler.SimulationDTO
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.ID != id || out.TargetProvider != "runway" {
		t.Errorf("simulation = %+v, want %s targeting runway", out, id)
	}
}

func TestGetHandler_NotFound(t *testing.T) {
	h := handler.GetHandler{Svc: newSimulator(newStubSimRepo())}

	req := httptest.NewRequest(http.MethodGet, "/v1/simulations/ghost", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestStopHandler(t *testing.T) {
	repo := newStubSimRepo()
	sim := newSimulator(repo)
	id := startSimulation(t, sim)
	h := handler.StopHandler{Svc: sim}

	req := httptest.NewRequest(http.MethodPost, "/v1/simulations/"+id+"/stop", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var out handler.SimulationDTO
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Status != string(entity.SimulationCompleted) {
		t.Errorf("status = %q, want completed", out.Status)
	}
	// no remediation fired inside the window, so both gates fail
	if out.PassedDetection || out.PassedRemediation || out.OverallScore != 0 {
		t.Errorf("scoring = %+v, want zero score", out)
	}

	stored := repo.stored[id]
	if stored == nil || stored.Status != entity.SimulationCompleted {
		t.Errorf("stored simulation = %+v, want completed", stored)
	}
}

func TestStopHandler_NotFound(t *testing.T) {
	h := handler.StopHandler{Svc: newSimulator(newStubSimRepo())}

	req := httptest.NewRequest(http.MethodPost, "/v1/simulations/ghost/stop", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestStopHandler_UnknownVerb(t *testing.T) {
	h := handler.StopHandler{Svc: newSimulator(newStubSimRepo())}

	req := httptest.NewRequest(http.MethodPost, "/v1/simulations/sim-1/pause", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
