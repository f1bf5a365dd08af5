package healing

import (
	"net/http"

	remediationUC "provider-mesh/internal/usecase/remediation"
)

// Register registers the self-healing HTTP handlers with the given mux.
func Register(mux *http.ServeMux, engine *remediationUC.Engine) {
	mux.Handle("GET    /v1/healing/metrics", MetricsHandler{engine})

	mux.Handle("GET    /v1/rules", ListRulesHandler{engine})
	mux.Handle("PUT    /v1/rules/", UpsertRuleHandler{engine})

	// approval decisions on pending semi-auto executions
	mux.Handle("POST   /v1/remediations/", DecideHandler{engine})
}
