package workitem

import (
	"net/http"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"github.com/frahmantamala/maintenance-management/internal/transport"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"github.com/frahmantamala/maintenance-management/pkg/logger"
)

// Handler serves one variant. Scope and ownership are enforced by the service.
type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	variant Variant
}

func NewHandler(v Variant, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
		variant:     v,
	}
}

// List handles GET /tasks and GET /defects
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	params, err := query.ParseParams(r.URL.Query(), h.variant.ListSpec)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	items, page, err := h.Service.List(r.Context(), caller, params)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ListResponse{Items: ToResponses(items), Pagination: page})
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

	item, err := h.Service.Create(r.Context(), caller, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, item.ToResponse())
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}

	item, err := h.Service.Get(r.Context(), caller, id)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, item.ToResponse())
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

	item, err := h.Service.Update(r.Context(), caller, id, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, item.ToResponse())
}

// Assign handles POST /{id}/assign
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var dto AssignDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	item, err := h.Service.Assign(r.Context(), caller, id, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, item.ToResponse())
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
