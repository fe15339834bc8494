package invoices

import (
	"github.com/go-chi/chi/v5"

	"github.com/stonecrest/backoffice/internal/auth"
	"github.com/stonecrest/backoffice/internal/shared"
)

// MountRoutes registers invoice and payment endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/from-quote", h.CreateFromQuote)
		r.Get("/{id}", h.Show)
		r.Put("/{id}/status", h.SetStatus)
		r.Post("/{id}/payment", h.RecordPayment)
		r.Post("/{id}/payments", h.RecordPayment)
		r.Get("/{id}/payments", h.ListPayments)
		r.With(auth.RequireRole(shared.RoleAdmin)).Delete("/{id}", h.Delete)
	})
}
