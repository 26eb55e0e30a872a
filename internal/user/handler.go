package user

import (
	"context"
	"net/http"

	"github.com/frahmantamala/maintenance-management/internal"
	"github.com/frahmantamala/maintenance-management/internal/query"
	"github.com/frahmantamala/maintenance-management/internal/transport"
	"github.com/frahmantamala/maintenance-management/pkg/logger"
)

type ServiceAPI interface {
	Approve(ctx context.Context, actorID, id int64, dto ApproveDTO) (*User, error)
	Reject(ctx context.Context, actorID, id int64, dto RejectDTO) (*User, error)
	Update(ctx context.Context, id int64, dto UpdateUserDTO) (*User, error)
	Delete(ctx context.Context, actorID, id int64) error
	List(ctx context.Context, params query.Params) ([]*User, query.Page, error)
	ListPending(ctx context.Context) ([]*User, query.Page, error)
	ListTechnicians(ctx context.Context) ([]*User, error)
}

// Handler serves the admin user directory. Grid checks run in the router.
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

// ListUsers handles GET /admin/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params, err := query.ParseParams(r.URL.Query(), ListSpec)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	users, page, err := h.Service.List(r.Context(), params)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, UsersResponse{Users: ToResponses(users), Pagination: page})
}

// ListPending handles GET /admin/users/pending
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	users, page, err := h.Service.ListPending(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, UsersResponse{Users: ToResponses(users), Pagination: page})
}

// ListTechnicians handles GET /admin/technicians
func (h *Handler) ListTechnicians(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListTechnicians(r.Context())
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"technicians": ToResponses(users)})
}

// Approve handles POST /admin/users/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var dto ApproveDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	u, err := h.Service.Approve(r.Context(), actor.ID, id, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u.ToResponse())
}

// Reject handles POST /admin/users/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var dto RejectDTO
	if r.ContentLength != 0 {
		if err := h.DecodeJSON(r, &dto); err != nil {
			h.WriteAppError(w, r, err)
			return
		}
	}

	u, err := h.Service.Reject(r.Context(), actor.ID, id, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u.ToResponse())
}

// Update handles PUT /admin/users/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var dto UpdateUserDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	u, err := h.Service.Update(r.Context(), id, dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u.ToResponse())
}

// Delete handles DELETE /admin/users/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), actor.ID, id); err != nil {
		h.WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) target(w http.ResponseWriter, r *http.Request) (*User, int64, bool) {
	actor, ok := CallerFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, internal.NewUnauthenticatedError("Authentication required", internal.ErrCodeMissingToken))
		return nil, 0, false
	}
	id, err := h.IDParam(r, "id")
	if err != nil {
		h.WriteAppError(w, r, err)
		return nil, 0, false
	}
	return actor, id, true
}
