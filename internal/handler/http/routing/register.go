package routing

import (
	"net/http"

	"provider-mesh/internal/handler/http/middleware"
	routingUC "provider-mesh/internal/usecase/routing"
)

// Register registers the routing HTTP handlers with the given mux.
// The two ordering endpoints sit on the request hot path and are protected
// by rate limiting.
func Register(mux *http.ServeMux, router *routingUC.Router, orderRateLimiter *middleware.RateLimiter) {
	mux.Handle("GET    /v1/routing/smart-order", orderRateLimiter.Middleware(SmartOrderHandler{router}))
	mux.Handle("GET    /v1/routing/quality-order", orderRateLimiter.Middleware(QualityOrderHandler{router}))

	mux.Handle("GET    /v1/providers/status", StatusHandler{router})
	mux.Handle("GET    /v1/routing/chain", DefaultChainHandler{router})
	mux.Handle("GET    /v1/chains/", GetChainHandler{router})
}
