package simulation

import (
	"errors"
	"net/http"
	"strings"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	simulationUC "provider-mesh/internal/usecase/simulation"
)

type GetHandler struct{ Svc *simulationUC.Simulator }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/simulations/")
	if id == "" || strings.Contains(id, "/") {
		respond.SafeError(w, http.StatusBadRequest,
			&entity.ValidationError{Field: "simulationId", Message: "is required"})
		return
	}

	sim, err := h.Svc.Get(r.Context(), id)
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
