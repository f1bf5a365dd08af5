package review

import (
	"net/http"

	routingUC "provider-mesh/internal/usecase/routing"
)

// Register registers the review-feedback HTTP handler with the given mux.
func Register(mux *http.ServeMux, router *routingUC.Router) {
	mux.Handle("POST   /v1/reviews", CreateHandler{router})
}
