package task

import (
	"encoding/json"
	"errors"
	"net/http"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	quotaUC "provider-mesh/internal/usecase/quota"
)

var validStatuses = map[entity.TaskStatus]bool{
	entity.TaskPending:   true,
	entity.TaskRunning:   true,
	entity.TaskThrottled: true,
	entity.TaskCompleted: true,
	entity.TaskFailed:    true,
}

type UpdateStatusHandler struct{ Svc *quotaUC.Guard }

func (h UpdateStatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := taskIDFromPath(r.URL.Path)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	status := entity.TaskStatus(req.Status)
	if !validStatuses[status] {
		respond.SafeError(w, http.StatusBadRequest,
			&entity.ValidationError{Field: "status", Message: "unknown task status"})
		return
	}

	if err := h.Svc.UpdateTaskStatus(r.Context(), id, status); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, entity.ErrNotFound) {
			code = http.StatusNotFound
		}
		respond.SafeError(w, code, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
