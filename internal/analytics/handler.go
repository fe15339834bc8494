package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/stonecrest/backoffice/internal/platform/httpx"
	"github.com/stonecrest/backoffice/internal/shared"
)

const requestTimeout = 5 * time.Second

type summarizer interface {
	Summary(ctx context.Context) (Summary, error)
}

// Handler serves the dashboard summary.
type Handler struct {
	logger  *slog.Logger
	service summarizer
	errors  httpx.ErrorResponder
}

func NewHandler(logger *slog.Logger, service *Service, errors httpx.ErrorResponder) *Handler {
	return &Handler{logger: logger, service: service, errors: errors}
}

// MountRoutes registers analytics endpoints. The summary is rate limited per
// caller because a cache miss fans out into several aggregate queries.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Fail(w, http.StatusTooManyRequests, "Too many requests", nil)
		}),
	)
	r.With(limiter).Get("/analytics/summary", h.summary)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	out, err := h.service.Summary(ctx)
	if err != nil {
		h.errors.Respond(w, r, err)
		return
	}
	httpx.OK(w, http.StatusOK, out)
}

func rateLimitKey(r *http.Request) (string, error) {
	if email := strings.TrimSpace(shared.ActorFromContext(r.Context())); email != "" {
		return "user:" + email, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
