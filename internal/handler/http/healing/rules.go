package healing

import (
	"encoding/json"
	"net/http"
	"strings"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	remediationUC "provider-mesh/internal/usecase/remediation"
)

type ListRulesHandler struct{ Svc *remediationUC.Engine }

func (h ListRulesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Svc.ListRules(r.Context())
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]RuleDTO, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toRuleDTO(rule))
	}
	respond.JSON(w, http.StatusOK, out)
}

type UpsertRuleHandler struct{ Svc *remediationUC.Engine }

func (h UpsertRuleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/rules/")
	if id == "" || strings.Contains(id, "/") {
		respond.SafeError(w, http.StatusBadRequest,
			&entity.ValidationError{Field: "ruleId", Message: "is required"})
		return
	}

	var req RuleDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	// the path is authoritative for the rule identity
	req.ID = id

	if err := h.Svc.UpsertRule(r.Context(), req.toEntity()); err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
