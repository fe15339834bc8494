package quotes

import (
	"github.com/go-chi/chi/v5"

	"github.com/stonecrest/backoffice/internal/auth"
	"github.com/stonecrest/backoffice/internal/shared"
)

// MountRoutes registers the quote endpoints; the caller applies authentication.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Show)
		r.Put("/{id}", h.Update)
		r.Put("/{id}/status", h.SetStatus)
		r.Post("/{id}/duplicate", h.Duplicate)
		r.With(auth.RequireRole(shared.RoleAdmin)).Delete("/{id}", h.Delete)
	})
}
