package task

import (
	"encoding/json"
	"errors"
	"net/http"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	quotaUC "provider-mesh/internal/usecase/quota"
)

type CreateHandler struct{ Svc *quotaUC.Guard }

func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TaskID     string `json:"task_id"`
		ModelType  string `json:"model_type"`
		CampaignID string `json:"campaign_id"`
		ContentID  string `json:"content_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	decision, err := h.Svc.RegisterTask(r.Context(), req.TaskID, req.ModelType, req.CampaignID, req.ContentID)
	if err != nil {
		var verr *entity.ValidationError
		switch {
		case errors.As(err, &verr):
			respond.SafeError(w, http.StatusBadRequest, err)
		case errors.Is(err, entity.ErrNotFound):
			respond.SafeError(w, http.StatusNotFound, err)
		default:
			respond.SafeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	// a daily-limit rejection is a hard stop; the caller must not retry
	// until the window rolls over
	if !decision.CanSubmit {
		respond.JSON(w, http.StatusConflict, decision)
		return
	}
	respond.JSON(w, http.StatusCreated, decision)
}
