package customers

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

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params, verr := shared.ParseListParams(r.URL.Query())
	if verr == nil {
		verr = &shared.ValidationError{}
	}
	filter := ListFilter{Search: r.URL.Query().Get("q"), Limit: params.Limit, Offset: params.Offset}
	if params.Status != "" {
		st, ok := ParseStatus(params.Status)
		if !ok {
			verr.Add("status", "is not a recognised customer status")
		}
		filter.Status = &st
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
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, c)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	c, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	h.logger.Info("customer created", slog.String("account_number", c.AccountNumber))
	httpx.OK(w, http.StatusCreated, c)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var req UpdateCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	c, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, c)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
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
		h.errors.Respond(w, r, shared.NotFoundf("customer %q", raw))
		return uuid.Nil, false
	}
	return id, true
}
