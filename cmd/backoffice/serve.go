package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stonecrest/backoffice/internal/analytics"
	"github.com/stonecrest/backoffice/internal/app"
	"github.com/stonecrest/backoffice/internal/auth"
	"github.com/stonecrest/backoffice/internal/customers"
	"github.com/stonecrest/backoffice/internal/invoices"
	"github.com/stonecrest/backoffice/internal/notify"
	"github.com/stonecrest/backoffice/internal/observability"
	"github.com/stonecrest/backoffice/internal/platform/cache"
	"github.com/stonecrest/backoffice/internal/platform/db"
	"github.com/stonecrest/backoffice/internal/platform/httpx"
	"github.com/stonecrest/backoffice/internal/quotes"
	"github.com/stonecrest/backoffice/internal/shared"
	"github.com/stonecrest/backoffice/internal/workorders"
	"github.com/stonecrest/backoffice/jobs"
)

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.MigrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("schema migrated")
	}

	redisOpts := redisOptions(cfg)
	redisClient, err := cache.New(ctx, redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	bus := notify.NewBus(logger)
	metrics := observability.NewMetrics()
	defer metrics.CountEvents(bus)()
	defer bus.Subscribe("audit", notify.AuditHandler(shared.NewAuditLogger(pool)))()

	analyticsCache := analytics.NewCache(redisClient, cfg.AnalyticsCacheTTL)
	defer analyticsCache.InvalidateOn(bus)()

	jobClient := jobs.NewClient(redisOpts.AsynqOpt())
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	defer jobs.SubscribeNotifications(bus, jobClient, logger)()

	inspector := asynq.NewInspector(redisOpts.AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	errorResponder := httpx.ErrorResponder{Logger: logger, Verbose: !cfg.IsProduction()}

	customerService := customers.NewService(customers.NewRepository(pool), bus)
	quoteService := quotes.NewService(quotes.NewRepository(pool), customerService, bus)
	quoteService.SetValidity(cfg.QuoteValidity())
	workOrderService := workorders.NewService(workorders.NewRepository(pool), quoteService, customerService, bus)
	invoiceService := invoices.NewService(invoices.NewRepository(pool), bus)
	invoiceService.SetDefaultDue(cfg.DefaultDue())
	analyticsService := analytics.NewService(analytics.NewRepository(pool), analyticsCache)

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Verifier: auth.NewTokenStore(redisClient),
		Metrics:  metrics,
		Checks: map[string]app.HealthCheck{
			"postgres": pingPool(pool),
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
		CustomersHandler:  customers.NewHandler(logger, customerService, errorResponder),
		QuotesHandler:     quotes.NewHandler(logger, quoteService, errorResponder),
		WorkOrdersHandler: workorders.NewHandler(logger, workOrderService, errorResponder),
		InvoicesHandler:   invoices.NewHandler(logger, invoiceService, errorResponder),
		AnalyticsHandler:  analytics.NewHandler(logger, analyticsService, errorResponder),
		JobHandler:        jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("schema migrated")
	return nil
}

func pingPool(pool *pgxpool.Pool) app.HealthCheck {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

func redisOptions(cfg *app.Config) cache.Options {
	return cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}
