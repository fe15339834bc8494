package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stonecrest/backoffice/internal/customers"
	"github.com/stonecrest/backoffice/internal/invoices"
	"github.com/stonecrest/backoffice/internal/observability"
	"github.com/stonecrest/backoffice/internal/platform/httpx"
	"github.com/stonecrest/backoffice/internal/quotes"
	"github.com/stonecrest/backoffice/internal/shared"
	"github.com/stonecrest/backoffice/internal/workorders"
	"github.com/stonecrest/backoffice/jobs"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 30*24*time.Hour, cfg.DefaultDue())
	assert.Equal(t, 30*24*time.Hour, cfg.QuoteValidity())
	assert.Equal(t, 10*time.Minute, cfg.AnalyticsCacheTTL)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DEFAULT_DUE_DAYS", "14")
	t.Setenv("APP_REQUEST_TIMEOUT", "5s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 14*24*time.Hour, cfg.DefaultDue())
	assert.Equal(t, 5*time.Second, cfg.AppRequestTimeout)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DEFAULT_DUE_DAYS", "0")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "-1")
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DEFAULT_DUE_DAYS")
	assert.Contains(t, err.Error(), "RATE_LIMIT_PER_MINUTE")

	t.Setenv("DEFAULT_DUE_DAYS", "soon")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", LogLevel: "warn"})
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["msg"])
	assert.Equal(t, slog.LevelInfo, parseLevel(nil))
}

type staticVerifier map[string]shared.Identity

func (v staticVerifier) Verify(ctx context.Context, token string) (shared.Identity, error) {
	id, ok := v[token]
	if !ok {
		return shared.Identity{}, shared.ErrUnauthorized
	}
	return id, nil
}

func testRouter(checks map[string]HealthCheck) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(RouterParams{
		Logger: logger,
		Config: &Config{AppEnv: "test", RateLimitPerMinute: 1000, AppRequestTimeout: time.Second},
		Verifier: staticVerifier{
			"admin-token": {Email: "boss@stonecrest.test", Role: shared.RoleAdmin},
			"staff-token": {Email: "crew@stonecrest.test", Role: shared.RoleEmployee},
		},
		Metrics:    observability.NewMetrics(),
		Checks:     checks,
		JobHandler: jobs.NewHandler(nil, logger),
	})
}

func do(h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	rr := do(testRouter(map[string]HealthCheck{"postgres": ok, "redis": ok}), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok","redis":"ok"}}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))

	rr = do(testRouter(map[string]HealthCheck{"postgres": ok, "redis": down}), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"postgres":"ok","redis":"unavailable"}}`, rr.Body.String())
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router := testRouter(nil)

	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/api/jobs/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(router, http.MethodGet, "/api/jobs/health", "stolen").Code)
	assert.Equal(t, http.StatusForbidden, do(router, http.MethodGet, "/api/jobs/health", "staff-token").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/api/jobs/health", "admin-token").Code)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	rr := do(testRouter(nil), http.MethodGet, "/nowhere", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"success":false,"message":"Route not found"}`, rr.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	router := testRouter(nil)
	do(router, http.MethodGet, "/healthz", "")
	rr := do(router, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `backoffice_http_requests_total{code="200",route="/healthz"} 1`)
}

func TestDomainRoutesRegistered(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	errs := httpx.ErrorResponder{Logger: logger}
	handler := NewRouter(RouterParams{
		Logger:            logger,
		Config:            &Config{AppEnv: "test", RateLimitPerMinute: 1000, AppRequestTimeout: time.Second},
		Verifier:          staticVerifier{},
		CustomersHandler:  customers.NewHandler(logger, nil, errs),
		QuotesHandler:     quotes.NewHandler(logger, nil, errs),
		WorkOrdersHandler: workorders.NewHandler(logger, nil, errs),
		InvoicesHandler:   invoices.NewHandler(logger, nil, errs),
	})
	mux, ok := handler.(chi.Routes)
	require.True(t, ok)

	for _, resource := range []string{"customers", "quotes", "workorders", "invoices"} {
		base := "/api/" + resource
		for _, route := range []struct{ method, path string }{
			{http.MethodGet, base},
			{http.MethodGet, base + "/42"},
			{http.MethodDelete, base + "/42"},
		} {
			assert.True(t, mux.Match(chi.NewRouteContext(), route.method, route.path), "%s %s", route.method, route.path)
		}
	}
	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/quotes"},
		{http.MethodPut, "/api/quotes/42/status"},
		{http.MethodPost, "/api/quotes/42/duplicate"},
		{http.MethodPost, "/api/workorders"},
		{http.MethodPut, "/api/workorders/42/status"},
		{http.MethodPost, "/api/invoices/from-quote"},
		{http.MethodPost, "/api/invoices/42/payment"},
		{http.MethodPost, "/api/invoices/42/payments"},
		{http.MethodGet, "/api/invoices/42/payments"},
	} {
		assert.True(t, mux.Match(chi.NewRouteContext(), route.method, route.path), "%s %s", route.method, route.path)
	}
}
