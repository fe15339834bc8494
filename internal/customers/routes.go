package customers

import (
	"github.com/go-chi/chi/v5"

	"github.com/stonecrest/backoffice/internal/auth"
	"github.com/stonecrest/backoffice/internal/shared"
)

// MountRoutes registers customer endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Show)
		r.Put("/{id}", h.Update)
		r.With(auth.RequireRole(shared.RoleAdmin)).Delete("/{id}", h.Delete)
	})
}
