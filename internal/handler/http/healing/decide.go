package healing

import (
	"errors"
	"net/http"
	"strings"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	remediationUC "provider-mesh/internal/usecase/remediation"
)

// DecideHandler resolves pending semi-auto executions. The path carries the
// execution ID and the decision verb:
//
//	POST /v1/remediations/{id}/approve
//	POST /v1/remediations/{id}/reject
type DecideHandler struct{ Svc *remediationUC.Engine }

func (h DecideHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/remediations/")
	id, verb, ok := strings.Cut(rest, "/")
	if !ok || id == "" {
		respond.SafeError(w, http.StatusBadRequest,
			&entity.ValidationError{Field: "executionId", Message: "is required"})
		return
	}

	var (
		exec *entity.RemediationExecution
		err  error
	)
	switch verb {
	case "approve":
		exec, err = h.Svc.Approve(r.Context(), id)
	case "reject":
		exec, err = h.Svc.Reject(r.Context(), id)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		var verr *entity.ValidationError
		switch {
		case errors.Is(err, entity.ErrNotFound):
			respond.SafeError(w, http.StatusNotFound, err)
		case errors.As(err, &verr):
			// approving or rejecting a non-pending execution
			respond.SafeError(w, http.StatusConflict, err)
		default:
			respond.SafeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	respond.JSON(w, http.StatusOK, toExecutionDTO(exec))
}
