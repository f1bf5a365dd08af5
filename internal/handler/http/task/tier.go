package task

import (
	"encoding/json"
	"errors"
	"net/http"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	quotaUC "provider-mesh/internal/usecase/quota"
)

type SetTierHandler struct{ Svc *quotaUC.Guard }

func (h SetTierHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tier              int                          `json:"tier"`
		ModelLimits       map[string]entity.ModelLimit `json:"model_limits"`
		MonthlySpendLimit float64                      `json:"monthly_spend_limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	cfg := &entity.TierQuotaConfig{
		Tier:              entity.RunwayTier(req.Tier),
		ModelLimits:       req.ModelLimits,
		MonthlySpendLimit: req.MonthlySpendLimit,
	}
	if err := h.Svc.SetTier(r.Context(), cfg); err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			respond.SafeError(w, http.StatusBadRequest, err)
			return
		}
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
