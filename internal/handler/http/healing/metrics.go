package healing

import (
	"net/http"
	"time"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	remediationUC "provider-mesh/internal/usecase/remediation"
)

// defaultMetricsWindow bounds the MTTD/MTTR aggregate when the caller does
// not name one.
const defaultMetricsWindow = 24 * time.Hour

type MetricsHandler struct{ Svc *remediationUC.Engine }

func (h MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	window := defaultMetricsWindow
	if v := r.URL.Query().Get("window"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			respond.SafeError(w, http.StatusBadRequest,
				&entity.ValidationError{Field: "window", Message: "must be a positive duration"})
			return
		}
		window = parsed
	}

	m, err := h.Svc.GetHealingMetrics(r.Context(), window)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, m)
}
