package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/stonecrest/backoffice/internal/analytics"
	"github.com/stonecrest/backoffice/internal/auth"
	"github.com/stonecrest/backoffice/internal/customers"
	"github.com/stonecrest/backoffice/internal/invoices"
	"github.com/stonecrest/backoffice/internal/observability"
	"github.com/stonecrest/backoffice/internal/platform/httpx"
	"github.com/stonecrest/backoffice/internal/quotes"
	"github.com/stonecrest/backoffice/internal/shared"
	"github.com/stonecrest/backoffice/internal/workorders"
	"github.com/stonecrest/backoffice/jobs"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Verifier auth.Verifier
	Metrics  *observability.Metrics
	Checks   map[string]HealthCheck

	CustomersHandler  *customers.Handler
	QuotesHandler     *quotes.Handler
	WorkOrdersHandler *workorders.Handler
	InvoicesHandler   *invoices.Handler
	AnalyticsHandler  *analytics.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with back-office defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/healthz", healthHandler(params.Checks, params.Logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Authenticate(params.Verifier, params.Logger))
		if params.CustomersHandler != nil {
			params.CustomersHandler.MountRoutes(r)
		}
		if params.QuotesHandler != nil {
			params.QuotesHandler.MountRoutes(r)
		}
		if params.WorkOrdersHandler != nil {
			params.WorkOrdersHandler.MountRoutes(r)
		}
		if params.InvoicesHandler != nil {
			params.InvoicesHandler.MountRoutes(r)
		}
		if params.AnalyticsHandler != nil {
			params.AnalyticsHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(shared.RoleAdmin))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		var g errgroup.Group
		type outcome struct {
			name string
			err  error
		}
		out := make(chan outcome, len(checks))
		for name, check := range checks {
			g.Go(func() error {
				out <- outcome{name: name, err: check(ctx)}
				return nil
			})
		}
		_ = g.Wait()
		close(out)

		status := http.StatusOK
		for o := range out {
			if o.err != nil {
				status = http.StatusServiceUnavailable
				results[o.name] = "unavailable"
				logger.Warn("health check failed", slog.String("check", o.name), slog.Any("error", o.err))
				continue
			}
			results[o.name] = "ok"
		}
		body := healthStatus{Status: "ok", Checks: results}
		if status != http.StatusOK {
			body.Status = "degraded"
		}
		httpx.JSON(w, status, body)
	}
}
