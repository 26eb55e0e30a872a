package material

import (
	"net/http"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"github.com/frahmantamala/maintenance-management/internal/transport"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"github.com/frahmantamala/maintenance-management/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
	}
}

// List handles GET /materials
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	params, err := query.ParseParams(r.URL.Query(), ListSpec)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	items, page, err := h.Service.List(r.Context(), caller, params)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ListResponse{Materials: ToResponses(items), Pagination: page})
}

// Categories handles GET /materials/categories
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	categories, err := h.Service.Categories(r.Context(), caller)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var dto CreateDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	m, err := h.Service.Create(r.Context(), caller, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, m.ToResponse())
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}

	m, err := h.Service.Get(r.Context(), caller, id)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, m.ToResponse())
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var dto UpdateDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	m, err := h.Service.Update(r.Context(), caller, id, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, m.ToResponse())
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), caller, id); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdjustStock handles POST /materials/{id}/stock
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var dto StockDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	m, err := h.Service.AdjustStock(r.Context(), caller, id, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, StockResponse{Material: m.ToResponse()})
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (*user.User, bool) {
	caller, ok := user.CallerFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.NewUnauthenticatedError("Authentication required", internal.ErrCodeMissingToken))
		return nil, false
	}
	return caller, true
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (*user.User, int64, bool) {
	caller, ok := h.caller(w, r)
	if !ok {
		return nil, 0, false
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.WriteAppError(w, r, err)
		return nil, 0, false
	}
	return caller, id, true
}
