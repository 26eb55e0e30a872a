package rest

import (
	"github.com/frahmantamala/maintenance-management/internal/auth"
	"github.com/frahmantamala/maintenance-management/internal/dashboard"
	"github.com/frahmantamala/maintenance-management/internal/material"
	"github.com/frahmantamala/maintenance-management/internal/transport/middleware"
	"github.com/frahmantamala/maintenance-management/internal/transport/swagger"
	"github.com/frahmantamala/maintenance-management/internal/user"
	"github.com/frahmantamala/maintenance-management/internal/workitem"
	"github.com/frahmantamala/maintenance-management/pkg/observability"
	"github.com/go-chi/chi"
)

// Handlers are the HTTP entry points mounted by RegisterAllRoutes. Nil handlers
// leave their routes unmounted.
type Handlers struct {
	Health    *HealthHandler
	Auth      *auth.Handler
	RBAC      *auth.RBACAuthorization
	Users     *user.Handler
	Tasks     *workitem.Handler
	Defects   *workitem.Handler
	Materials *material.Handler
	Dashboard *dashboard.Handler
	Metrics   *observability.Metrics
	// MetricsPath is where the Prometheus registry is served when Metrics is set.
	MetricsPath string
}

// RegisterAllRoutes mounts the API under /api/v1. Work items and materials
// authorize inside their services, since ownership needs the loaded record;
// admin routes are gated here.
func RegisterAllRoutes(router chi.Router, h Handlers) {
	router.Use(middleware.CORS)
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.Metrics(h.Metrics))

	router.Get(swagger.SpecPath, swagger.SpecHandler)
	router.Handle("/swagger/*", swagger.Handler())
	if h.Metrics != nil {
		path := h.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.Handle(path, h.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if h.Health != nil {
			r.Get("/health", h.Health.Health)
			r.Get("/ping", h.Health.Ping)
		}

		if h.Auth == nil {
			return
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", h.Auth.Register)
			ar.Post("/login", h.Auth.Login)
			ar.Post("/refresh", h.Auth.RefreshToken)
			ar.With(h.Auth.AuthMiddleware).Get("/me", h.Auth.Me)
		})

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.Tasks != nil {
				pr.Route("/tasks", workItemRoutes(h.Tasks))
			}
			if h.Defects != nil {
				pr.Route("/defects", workItemRoutes(h.Defects))
			}
			if h.Materials != nil {
				pr.Route("/materials", func(mr chi.Router) {
					mr.Get("/", h.Materials.List)
					mr.Post("/", h.Materials.Create)
					mr.Get("/categories", h.Materials.Categories)
					mr.Get("/{id}", h.Materials.Get)
					mr.Put("/{id}", h.Materials.Update)
					mr.Delete("/{id}", h.Materials.Delete)
					mr.Post("/{id}/stock", h.Materials.AdjustStock)
				})
			}

			if h.RBAC != nil {
				pr.Route("/admin", func(ad chi.Router) {
					if h.Dashboard != nil {
						ad.With(h.RBAC.RequirePermission(user.ResourceReports, user.ActionView)).
							Get("/dashboard", h.Dashboard.Get)
					}
					if h.Users != nil {
						adminUserRoutes(ad, h.RBAC, h.Users)
					}
				})
			}
		})
	})
}

func workItemRoutes(h *workitem.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/{id}/assign", h.Assign)
	}
}

func adminUserRoutes(r chi.Router, rbac *auth.RBACAuthorization, h *user.Handler) {
	view := rbac.RequirePermission(user.ResourceUsers, user.ActionView)
	edit := rbac.RequirePermission(user.ResourceUsers, user.ActionEdit)
	remove := rbac.RequirePermission(user.ResourceUsers, user.ActionDelete)

	r.With(view).Get("/users", h.ListUsers)
	r.With(view).Get("/users/pending", h.ListPending)
	r.With(view).Get("/technicians", h.ListTechnicians)
	r.With(edit).Post("/users/{id}/approve", h.Approve)
	r.With(edit).Post("/users/{id}/reject", h.Reject)
	r.With(edit).Put("/users/{id}", h.Update)
	r.With(remove).Delete("/users/{id}", h.Delete)
}
