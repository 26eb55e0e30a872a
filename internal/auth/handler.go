package auth

import (
	"net/http"

	"github.com/frahmantamala/maintenance-management/internal/transport"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"github.com/frahmantamala/maintenance-management/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	cache   *CallerCache
}

func NewHandler(svc ServiceAPI, cache *CallerCache) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		Service:     svc,
		cache:       cache,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	u, err := h.Service.Register(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, RegisterResponse{
		Message: "Registration received. Your account is awaiting administrator approval.",
		User:    u.ToResponse(),
	})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	tokens, u, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, LoginResponse{AuthTokens: tokens, User: u.ToResponse()})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	tokens, err := h.Service.Refresh(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, tokens)
}

// Me returns the caller with its effective permissions.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := user.CallerFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, r, ErrMissingToken)
		return
	}
	h.WriteJSON(w, http.StatusOK, caller.ToResponse())
}

// AuthMiddleware resolves the bearer token to an active caller and stores it in the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.WriteAppError(w, r, ErrMissingToken)
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		id, err := claims.UserID()
		if err != nil {
			h.WriteAppError(w, r, ErrInvalidToken)
			return
		}

		caller, ok := h.cache.Get(id)
		if !ok {
			caller, err = h.Service.ResolveCaller(r.Context(), id)
			if err != nil {
				h.WriteAppError(w, r, err)
				return
			}
			h.cache.Add(caller)
		}

		if !caller.IsActive() {
			h.WriteAppError(w, r, InactiveError(caller.Status))
			return
		}

		ctx := user.WithCaller(r.Context(), caller)
		ctx = logger.With(ctx, "user_id", caller.ID, "role", caller.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
