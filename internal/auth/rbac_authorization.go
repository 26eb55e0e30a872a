package auth

import (
	"net/http"

	"github.com/frahmantamala/maintenance-management/internal/transport"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"github.com/frahmantamala/maintenance-management/pkg/logger"
)

// RBACAuthorization turns guard decisions into chi middleware for routes that
// need a grid check before any record is loaded.
type RBACAuthorization struct {
	*transport.BaseHandler
	guard *Guard
}

func NewRBACAuthorization(guard *Guard) *RBACAuthorization {
	return &RBACAuthorization{
		BaseHandler: transport.NewBaseHandler(logger.LoggerWrapper()),
		guard:       guard,
	}
}

func (ra *RBACAuthorization) Check(next http.HandlerFunc, resource user.Resource, action user.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := user.CallerFromContext(r.Context())
		if err := ra.guard.Authorize(r.Context(), caller, resource, action); err != nil {
			ra.WriteAppError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (ra *RBACAuthorization) RequirePermission(resource user.Resource, action user.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return ra.Check(next.ServeHTTP, resource, action)
	}
}
