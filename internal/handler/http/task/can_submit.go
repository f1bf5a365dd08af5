package task

import (
	"errors"
	"net/http"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	quotaUC "provider-mesh/internal/usecase/quota"
)

type CanSubmitHandler struct{ Svc *quotaUC.Guard }

func (h CanSubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	modelType := r.URL.Query().Get("model_type")
	if modelType == "" {
		respond.SafeError(w, http.StatusBadRequest,
			&entity.ValidationError{Field: "model_type", Message: "is required"})
		return
	}

	decision, err := h.Svc.CanSubmitTask(r.Context(), modelType)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, entity.ErrNotFound) {
			code = http.StatusNotFound
		}
		respond.SafeError(w, code, err)
		return
	}
	respond.JSON(w, http.StatusOK, decision)
}
