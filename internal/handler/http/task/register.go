package task

import (
	"net/http"

	quotaUC "provider-mesh/internal/usecase/quota"
)

// Register registers the task admission HTTP handlers with the given mux.
// The exact can-submit pattern takes precedence over the ID prefix routes.
func Register(mux *http.ServeMux, guard *quotaUC.Guard) {
	mux.Handle("GET    /v1/tasks/can-submit", CanSubmitHandler{guard})
	mux.Handle("POST   /v1/tasks", CreateHandler{guard})
	mux.Handle("GET    /v1/tasks/", GetHandler{guard})
	mux.Handle("PATCH  /v1/tasks/", UpdateStatusHandler{guard})

	mux.Handle("PUT    /v1/tier", SetTierHandler{guard})
}
