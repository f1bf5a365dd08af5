package outcome

import (
	"encoding/json"
	"net/http"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	healthUC "provider-mesh/internal/usecase/health"
)

type ReportHandler struct{ Svc *healthUC.Scorer }

func (h ReportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider     string                `json:"provider"`
		ServiceType  string                `json:"service_type"`
		RequestID    string                `json:"request_id"`
		Success      bool                  `json:"success"`
		LatencyMs    int64                 `json:"latency_ms"`
		ErrorCode    string                `json:"error_code"`
		ErrorMessage string                `json:"error_message"`
		CostIncurred float64               `json:"cost_incurred"`
		CampaignID   string                `json:"campaign_id"`
		ContentID    string                `json:"content_id"`
		Params       *entity.RequestParams `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	o := &entity.RequestOutcome{
		Provider:     req.Provider,
		ServiceType:  entity.ServiceType(req.ServiceType),
		RequestID:    req.RequestID,
		Success:      req.Success,
		LatencyMs:    req.LatencyMs,
		ErrorCode:    req.ErrorCode,
		ErrorMessage: req.ErrorMessage,
		CostIncurred: req.CostIncurred,
		CampaignID:   req.CampaignID,
		ContentID:    req.ContentID,
		Params:       req.Params,
	}
	if err := o.Validate(); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.Svc.ReportOutcome(r.Context(), o); err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
