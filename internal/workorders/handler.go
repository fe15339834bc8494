package workorders

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stonecrest/backoffice/internal/platform/httpx"
	"github.com/stonecrest/backoffice/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
	errors  httpx.ErrorResponder
}

func NewHandler(logger *slog.Logger, service *Service, errors httpx.ErrorResponder) *Handler {
	return &Handler{service: service, logger: logger, errors: errors}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params, verr := shared.ParseListParams(q)
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
	if raw := q.Get("priority"); raw != "" {
		p := Priority(raw)
		switch p {
		case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		default:
			verr.Add("priority", "must be one of: Low, Normal, High, Urgent")
		}
		filter.Priority = &p
	}
	filter.CustomerID = parseOptionalID(verr, "customer_id", params.CustomerID)
	filter.QuoteID = parseOptionalID(verr, "quote_id", q.Get("quote_id"))
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

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	wo, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, wo)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	wo, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	h.logger.Info("work order created",
		slog.String("work_order_number", wo.WorkOrderNumber),
		slog.String("priority", string(wo.Priority)))
	httpx.OK(w, http.StatusCreated, map[string]any{
		"id":                wo.ID,
		"work_order_number": wo.WorkOrderNumber,
		"work_order":        wo,
	})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	wo, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, wo)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	wo, err := h.service.SetStatus(r.Context(), id, req)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, wo)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.service.SoftDelete(r.Context(), id); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"id": id, "status": StatusDeleted})
}

func (h *Handler) id(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.errors.Respond(w, r, shared.NotFoundf("work order %q", raw))
		return uuid.Nil, false
	}
	return id, true
}

func parseOptionalID(verr *shared.ValidationError, field, raw string) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		verr.Add(field, "must be a valid id")
		return nil
	}
	return &id
}
