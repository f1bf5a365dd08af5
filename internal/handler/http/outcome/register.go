package outcome

import (
	"net/http"

	"provider-mesh/internal/handler/http/middleware"
	healthUC "provider-mesh/internal/usecase/health"
)

// Register registers the outcome-reporting HTTP handler with the given mux.
// Adapters call this endpoint after every provider attempt, so it sits on the
// hot path and is protected by rate limiting.
func Register(mux *http.ServeMux, scorer *healthUC.Scorer, reportRateLimiter *middleware.RateLimiter) {
	mux.Handle("POST   /v1/outcomes", reportRateLimiter.Middleware(ReportHandler{scorer}))
}
