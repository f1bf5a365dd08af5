package routing

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	routingUC "provider-mesh/internal/usecase/routing"
)

// serviceTypeParam extracts and validates the mandatory service_type query
// parameter.
func serviceTypeParam(q url.Values) (entity.ServiceType, error) {
	st := entity.ServiceType(q.Get("service_type"))
	if !entity.ValidServiceType(st) {
		return "", &entity.ValidationError{Field: "service_type", Message: "unknown service type"}
	}
	return st, nil
}

// orderOptions parses the shared candidate filters from the query string.
func orderOptions(q url.Values) routingUC.Options {
	opts := routingUC.Options{
		FreeOnly: q.Get("free_only") == "true",
	}
	if ex := q.Get("exclude"); ex != "" {
		opts.ExcludeProviders = strings.Split(ex, ",")
	}

	params := entity.RequestParams{Model: q.Get("model")}
	if v := q.Get("duration_seconds"); v != "" {
		params.DurationSeconds, _ = strconv.Atoi(v)
	}
	if v := q.Get("prompt_chars"); v != "" {
		params.PromptChars, _ = strconv.Atoi(v)
	}
	if params != (entity.RequestParams{}) {
		opts.Params = &params
	}
	return opts
}

type SmartOrderHandler struct{ Svc *routingUC.Router }

func (h SmartOrderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	serviceType, err := serviceTypeParam(q)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	order, err := h.Svc.SmartOrder(r.Context(), serviceType, orderOptions(q))
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"service_type": serviceType,
		"providers":    order,
	})
}

type QualityOrderHandler struct{ Svc *routingUC.Router }

func (h QualityOrderHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	serviceType, err := serviceTypeParam(q)
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	tier := entity.TierProduction
	if t := q.Get("tier"); t != "" {
		tier = entity.QualityTier(t)
		if !tier.Valid() {
			respond.SafeError(w, http.StatusBadRequest,
				&entity.ValidationError{Field: "tier", Message: "unknown quality tier"})
			return
		}
	}

	opts := routingUC.QualityOptions{
		Options: orderOptions(q),
		Tier:    tier,
	}
	if v := q.Get("min_quality"); v != "" {
		minQuality, perr := strconv.ParseFloat(v, 64)
		if perr != nil {
			respond.SafeError(w, http.StatusBadRequest,
				&entity.ValidationError{Field: "min_quality", Message: "must be a number"})
			return
		}
		opts.MinQualityScore = minQuality
	}

	order, err := h.Svc.QualityAwareOrder(r.Context(), serviceType, opts)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]any{
		"service_type": serviceType,
		"tier":         tier,
		"providers":    order,
	})
}
