package invoices

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stonecrest/backoffice/internal/platform/httpx"
	"github.com/stonecrest/backoffice/internal/shared"
)

// Handler exposes invoices and their payment ledger.
type Handler struct {
	service *Service
	logger  *slog.Logger
	errors  httpx.ErrorResponder
}

func NewHandler(logger *slog.Logger, service *Service, errors httpx.ErrorResponder) *Handler {
	return &Handler{service: service, logger: logger, errors: errors}
}

func (h *Handler) CreateFromQuote(w http.ResponseWriter, r *http.Request) {
	var req CreateFromQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	inv, err := h.service.CreateFromQuote(r.Context(), req)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	h.logger.Info("invoice created",
		slog.String("invoice_number", inv.InvoiceNumber),
		slog.String("quote_id", inv.QuoteID.String()),
		slog.Float64("total", inv.Total))
	httpx.OK(w, http.StatusCreated, map[string]any{
		"id":             inv.ID,
		"invoice_number": inv.InvoiceNumber,
		"invoice":        inv,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params, verr := shared.ParseListParams(r.URL.Query())
	if verr == nil {
		verr = &shared.ValidationError{}
	}
	filter := ListFilter{FromDate: params.FromDate, ToDate: params.ToDate, Limit: params.Limit, Offset: params.Offset}
	if params.Status != "" {
		st, ok := ParseStatus(params.Status)
		if !ok {
			verr.Add("status", "must be one of: "+joinStatuses())
		}
		filter.Status = &st
	}
	if params.CustomerID != "" {
		id, err := uuid.Parse(params.CustomerID)
		if err != nil {
			verr.Add("customer_id", "must be a valid id")
		}
		filter.CustomerID = &id
	}
	if raw := r.URL.Query().Get("quote_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			verr.Add("quote_id", "must be a valid id")
		}
		filter.QuoteID = &id
	}
	if err := verr.ErrOrNil(); err != nil {
		h.errors.Respond(w, r, err)
		return
	}

	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OKWithMeta(w, items, shared.NewPagination(filter.Limit, filter.Offset, total))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	inv, err := h.service.SetStatus(r.Context(), id, req)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, inv)
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(shared.IdempotencyHeader))
	if len(key) > 200 {
		h.errors.Respond(w, r, shared.NewValidationError(shared.IdempotencyHeader, "must be at most 200 characters"))
		return
	}
	result, err := h.service.RecordPayment(r.Context(), id, req, key)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	h.logger.Info("payment recorded",
		slog.String("invoice_number", result.Invoice.InvoiceNumber),
		slog.Float64("amount", result.Payment.Amount),
		slog.Float64("new_balance", result.NewBalance),
		slog.String("status", string(result.Status)))
	httpx.OK(w, http.StatusOK, result)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, payments)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), id); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"id": id, "status": StatusDeleted})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.errors.Respond(w, r, shared.NotFoundf("invoice %q", raw))
		return uuid.Nil, false
	}
	return id, true
}
