package routing

import (
	"errors"
	"net/http"

	"provider-mesh/internal/domain/entity"
	"provider-mesh/internal/handler/http/pathutil"
	"provider-mesh/internal/handler/http/respond"
	routingUC "provider-mesh/internal/usecase/routing"
)

type DefaultChainHandler struct{ Svc *routingUC.Router }

func (h DefaultChainHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	serviceType, err := serviceTypeParam(r.URL.Query())
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	chain, err := h.Svc.DefaultChain(r.Context(), serviceType)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}
	if chain == nil {
		respond.SafeError(w, http.StatusNotFound,
			errors.New("default chain not found for service type"))
		return
	}
	respond.JSON(w, http.StatusOK, toChainDTO(chain))
}

type GetChainHandler struct{ Svc *routingUC.Router }

func (h GetChainHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := pathutil.ExtractID(r.URL.Path, "/v1/chains/")
	if err != nil {
		respond.SafeError(w, http.StatusBadRequest, err)
		return
	}

	chain, err := h.Svc.ChainByID(r.Context(), id)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, entity.ErrNotFound) {
			code = http.StatusNotFound
		}
		respond.SafeError(w, code, err)
		return
	}
	respond.JSON(w, http.StatusOK, toChainDTO(chain))
}
