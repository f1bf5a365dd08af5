package simulation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	simulationUC "provider-mesh/internal/usecase/simulation"
)

type StartHandler struct{ Svc *simulationUC.Simulator }

func (h StartHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetProvider    string  `json:"target_provider"`
		TargetServiceType string  `json:"target_service_type"`
		FailureType       string  `json:"failure_type"`
		ErrorRate         float64 `json:"error_rate"`
		DurationMinutes   int     `json:"duration_minutes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	sim, err := h.Svc.Start(r.Context(),
		req.TargetProvider,
		entity.ServiceType(req.TargetServiceType),
		req.FailureType,
		req.ErrorRate,
		time.Duration(req.DurationMinutes)*time.Minute,
	)
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			respond.SafeError(w, http.StatusBadRequest, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusCreated, toSimulationDTO(sim))
}
