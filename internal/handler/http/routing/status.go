package routing

import (
	"net/http"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/respond"
	routingUC "provider-mesh/internal/usecase/routing"
)

type StatusHandler struct{ Svc *routingUC.Router }

func (h StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// service_type is optional here; an empty value returns every provider
	serviceType := entity.ServiceType(r.URL.Query().Get("service_type"))
	if serviceType != "" && !entity.ValidServiceType(serviceType) {
		respond.SafeError(w, http.StatusBadRequest,
			&entity.ValidationError{Field: "service_type", Message: "unknown service type"})
		return
	}

	list, err := h.Svc.ProviderStatus(r.Context(), serviceType)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]ProviderStatusDTO, 0, len(list))
	for _, m := range list {
		out = append(out, toStatusDTO(m))
	}
	respond.JSON(w, http.StatusOK, out)
}
