package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kevin07696/membership-service/internal/adapters/postgres"
	"github.com/kevin07696/membership-service/internal/adapters/rediscache"
	"github.com/kevin07696/membership-service/internal/bootstrap"
	"github.com/kevin07696/membership-service/internal/config"
	cronHandler "github.com/kevin07696/membership-service/internal/handlers/cron"
	membershipHandler "github.com/kevin07696/membership-service/internal/handlers/membership"
	webhookHandler "github.com/kevin07696/membership-service/internal/handlers/webhook"
	"github.com/kevin07696/membership-service/internal/middleware"
	"github.com/kevin07696/membership-service/pkg/logging"
	"github.com/kevin07696/membership-service/pkg/observability"
	"github.com/kevin07696/membership-service/pkg/shutdown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.ValidateServer(); err != nil {
		logger.Fatal("Invalid server configuration", zap.Error(err))
	}

	logger.Info("Starting membership service",
		zap.String("version", "0.1.0"),
		zap.Bool("gateway_test_mode", cfg.Gateway.TestMode),
		zap.Bool("redis_enabled", cfg.Redis.Enabled),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Servers stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	startupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := postgres.MigrateUp(cfg.Database.ConnectionString()); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	app, err := bootstrap.New(startupCtx, cfg, logger, nil)
	if err != nil {
		return err
	}

	// Components shut down in reverse order: servers first, connections last
	shutdownManager := shutdown.NewManager(logger, cfg.Server.ShutdownTimeout)
	shutdownManager.RegisterNoErr("connections", app.Close)

	healthChecker := observability.NewHealthChecker().
		Register("postgres", app.DB.Ping)
	if app.Redis != nil {
		healthChecker.Register("redis", rediscache.Ping(app.Redis))
	}

	metricsServer := observability.StartMetricsServer(strconv.Itoa(cfg.Server.MetricsPort), healthChecker, logger)
	shutdownManager.Register("metrics-server", func(ctx context.Context) error {
		return observability.ShutdownMetricsServer(ctx, metricsServer)
	})
	logger.Info("Metrics server listening", zap.Int("port", cfg.Server.MetricsPort))

	rateLimiter := middleware.NewRateLimiter(cfg.Server.RequestsPerSecond, cfg.Server.Burst, middleware.MemberOrIP)
	shutdownManager.RegisterNoErr("rate-limiter", rateLimiter.Shutdown)

	jobsInFlight := shutdown.NewInFlightTracker("cron-jobs", logger)

	mux := http.NewServeMux()

	membershipHandler.NewHandler(app.Membership, app.Timeouts, logger).
		Register(mux, rateLimiter.Middleware)

	webhooks := webhookHandler.NewHandler(
		app.Gateway, app.DB, app.WebhookEvents, app.Membership, app.Snapshots,
		app.Timeouts, nil, logger,
	)
	mux.Handle("POST /webhooks/gateway", observability.InstrumentHandler("POST /webhooks/gateway", http.HandlerFunc(webhooks.HandleEvent)))

	cronHandler.NewJobsHandler(
		app.Duplicates, app.Aligner, app.Locker, app.JobRuns,
		app.BatchOptions(), app.Timeouts, logger, cfg.Server.CronSecret,
	).WithInFlight(jobsInFlight).Register(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           middleware.NewSecurityHeaders(cfg.Logger.Development).Middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Batch jobs finish before the connections they use are closed
	shutdownManager.Register("cron-jobs", jobsInFlight.Shutdown)
	shutdownManager.Register("http-server", httpServer.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	signalCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		if err := <-serveErr; err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	return shutdownManager.WaitForSignal(signalCtx)
}
