package workorders

import (
	"github.com/go-chi/chi/v5"

	"github.com/stonecrest/backoffice/internal/auth"
	"github.com/stonecrest/backoffice/internal/shared"
)

// MountRoutes registers work order endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/workorders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
		r.Put("/{id}", h.update)
		r.Put("/{id}/status", h.setStatus)
		r.With(auth.RequireRole(shared.RoleAdmin)).Delete("/{id}", h.delete)
	})
}
