package review

import (
	"encoding/json"
	"errors"
	"net/http"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	routingUC "provider-mesh/internal/usecase/routing"
)

type CreateHandler struct{ Svc *routingUC.Router }

func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider    string   `json:"provider"`
		ServiceType string   `json:"service_type"`
		Accepted    bool     `json:"accepted"`
		Rating      *float64 `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Rating != nil && (*req.Rating < 0 || *req.Rating > 5) {
		respond.SafeError(w, http.StatusBadRequest,
			&entity.ValidationError{Field: "rating", Message: "must be between 0 and 5"})
		return
	}

	q, err := h.Svc.UpdateQualityFromReview(r.Context(),
		req.Provider, entity.ServiceType(req.ServiceType), req.Accepted, req.Rating)
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			respond.SafeError(w, http.StatusBadRequest, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, toQualityDTO(q))
}
