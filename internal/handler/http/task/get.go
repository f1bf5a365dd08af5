package task

import (
	"errors"
	"net/http"

	"provider-mesh/internal/handler/http/respond"
	quotaUC "provider-mesh/internal/usecase/quota"
)

type GetHandler struct{ Svc *quotaUC.Guard }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDFromPath(r.URL.Path)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	t, err := h.Svc.GetTask(r.Context(), id)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if t == nil {
		respond.SafeError(w, http.StatusNotFound, errors.New("task not found"))
		return
	}
	respond.JSON(w, http.StatusOK, toTaskDTO(t))
}
