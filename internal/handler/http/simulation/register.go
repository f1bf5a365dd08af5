package simulation

import (
	"net/http"

	simulationUC "provider-mesh/internal/usecase/simulation"
)

// Register registers the failure-simulation HTTP handlers with the given mux.
func Register(mux *http.ServeMux, sim *simulationUC.Simulator) {
	mux.Handle("POST   /v1/simulations", StartHandler{sim})
	mux.Handle("GET    /v1/simulations/", GetHandler{sim})
	mux.Handle("POST   /v1/simulations/", StopHandler{sim})
}
