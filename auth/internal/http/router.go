package http_auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"nodove/auth/internal/domain/models"
)

// NewRouter wires the routes. The gate runs on every request; role rules are
// applied per route group.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	if len(h.proxies) > 0 {
		r.Use(h.trustProxies)
	}
	r.Use(middleware.RequestID)
	r.Use(h.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(h.observe)
	r.Use(h.Authorize)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		Error(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", h.Health)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)
		r.Put("/logout", h.Logout)
		r.Get("/verify", h.Verify)

		r.With(RequireRole(models.RoleUser, models.RoleAdmin)).Get("/devices", h.Devices)
	})

	r.With(RequireRole(models.RoleUser, models.RoleAdmin)).Get("/user/profile", h.Profile)

	r.Route("/admin", func(r chi.Router) {
		r.Use(RequireRole(models.RoleAdmin))

		r.Get("/users/{userId}/block", h.BlockStatus)
		r.Put("/users/{userId}/block", h.BlockUser)
		r.Delete("/users/{userId}/block", h.UnblockUser)
		r.Put("/users/{userId}/active", h.SetUserActive(true))
		r.Delete("/users/{userId}/active", h.SetUserActive(false))
	})

	return r
}
