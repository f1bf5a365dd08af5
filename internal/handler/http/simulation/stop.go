package simulation

import (
	"errors"
	"net/http"
	"strings"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	simulationUC "provider-mesh/internal/usecase/simulation"
)

// StopHandler cancels a running simulation early:
//
//	POST /v1/simulations/{id}/stop
type StopHandler struct{ Svc *simulationUC.Simulator }

func (h StopHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/simulations/")
	id, verb, ok := strings.Cut(rest, "/")
	if !ok || verb != "stop" {
		http.NotFound(w, r)
		return
	}
	if id == "" {
		respond.SafeError(w, http.StatusBadRequest,
			&entity.ValidationError{Field: "simulationId", Message: "is required"})
		return
	}

	sim, err := h.Svc.Stop(r.Context(), id)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, entity.ErrNotFound) {
			code = http.StatusNotFound
		}
		respond.SafeError(w, code, err)
		return
	}
	respond.JSON(w, http.StatusOK, toSimulationDTO(sim))
}
