package quotes

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/stonecrest/backoffice/internal/platform/httpx"
	"github.com/stonecrest/backoffice/internal/shared"
)

type quoteService interface {
	Create(ctx context.Context, req CreateRequest) (*Quote, error)
	Get(ctx context.Context, id uuid.UUID) (*Quote, error)
	List(ctx context.Context, filter ListFilter) ([]Quote, int, error)
	Update(ctx context.Context, id uuid.UUID, req UpdateRequest) (*Quote, error)
	SetStatus(ctx context.Context, id uuid.UUID, req SetStatusRequest) (*Quote, error)
	Duplicate(ctx context.Context, id uuid.UUID) (*Quote, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// Handler exposes quotes over JSON.
type Handler struct {
	logger  *slog.Logger
	service quoteService
	errors  httpx.ErrorResponder
}

// NewHandler builds the quotes HTTP handler.
func NewHandler(logger *slog.Logger, service *Service, errors httpx.ErrorResponder) *Handler {
	return &Handler{logger: logger, service: service, errors: errors}
}

type createdResponse struct {
	ID          uuid.UUID `json:"id"`
	QuoteNumber string    `json:"quote_number"`
	Quote       *Quote    `json:"quote"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params, verr := shared.ParseListParams(r.URL.Query())
	filter := ListFilter{
		FromDate: params.FromDate,
		ToDate:   params.ToDate,
		Limit:    params.Limit,
		Offset:   params.Offset,
	}
	if verr == nil {
		verr = &shared.ValidationError{}
	}
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
	q, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	q, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	h.logger.Info("quote created", slog.String("quote_number", q.QuoteNumber), slog.String("actor", q.CreatedBy))
	httpx.OK(w, http.StatusCreated, createdResponse{ID: q.ID, QuoteNumber: q.QuoteNumber, Quote: q})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	q, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
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
	q, err := h.service.SetStatus(r.Context(), id, req)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, q)
}

func (h *Handler) Duplicate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	q, err := h.service.Duplicate(r.Context(), id)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusCreated, createdResponse{ID: q.ID, QuoteNumber: q.QuoteNumber, Quote: q})
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
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		// malformed ids cannot name an existing quote
		h.errors.Respond(w, r, shared.NotFoundf("quote %q", chi.URLParam(r, "id")))
		return uuid.Nil, false
	}
	return id, true
}
