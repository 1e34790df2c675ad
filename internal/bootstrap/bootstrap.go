// Package bootstrap wires configuration into the adapters and services shared by
// the server and the batch job binaries.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kevin07696/membership-service/internal/adapters/memory"
	"github.com/kevin07696/membership-service/internal/adapters/postgres"
	"github.com/kevin07696/membership-service/internal/adapters/rediscache"
	"github.com/kevin07696/membership-service/internal/adapters/stripe"
	"github.com/kevin07696/membership-service/internal/config"
	"github.com/kevin07696/membership-service/internal/domain/ports"
	"github.com/kevin07696/membership-service/internal/services/account"
	"github.com/kevin07696/membership-service/internal/services/alignment"
	"github.com/kevin07696/membership-service/internal/services/batch"
	"github.com/kevin07696/membership-service/internal/services/duplicates"
	"github.com/kevin07696/membership-service/internal/services/membership"
	"github.com/kevin07696/membership-service/pkg/logging"
	"github.com/kevin07696/membership-service/pkg/resilience"
	"github.com/kevin07696/membership-service/pkg/timeutil"
)

// App holds the wired dependencies of one process
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Log      ports.Logger
	Timeouts *resilience.TimeoutConfig

	Pool  *pgxpool.Pool
	DB    *postgres.DBExecutor
	Redis *redis.Client // nil when Redis is disabled

	Gateway       *stripe.Adapter
	Locker        ports.Locker
	Cache         ports.SnapshotCache // nil when Redis is disabled
	Links         *postgres.CustomerLinkRepository
	Members       *postgres.MemberDirectory
	Tiers         *postgres.TierCatalog
	WebhookEvents *postgres.WebhookEventRepository
	JobRuns       *postgres.JobRunRepository

	Accounts   *account.Resolver
	Snapshots  *account.Loader
	Membership *membership.Service
	Duplicates *duplicates.Resolver
	Aligner    *alignment.Migrator
}

// New connects to the database, Redis and the gateway and builds the services.
// clock may be nil; the batch CLIs pass a fixed clock for --as-of runs.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, clock timeutil.Clock) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Log:      logging.NewZapLogger(logger),
		Timeouts: resilience.DefaultTimeoutConfig(),
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.Database.ConnectionString(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
	}, app.Log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	app.Pool = pool
	app.DB = postgres.NewDBExecutor(pool)

	if cfg.Redis.Enabled {
		rdb, err := rediscache.NewClient(ctx, rediscache.Config{
			Address:  cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.Redis = rdb
		prefix := cfg.Redis.KeyPrefix + ":"
		app.Locker = rediscache.NewLocker(rdb, prefix)
		app.Cache = rediscache.NewSnapshotCache(rdb, prefix)
	} else {
		logger.Warn("Redis disabled: using in-process locks and no snapshot cache, run a single instance only")
		app.Locker = memory.NewLocker()
	}

	gatewayKey, webhookSecret, err := GatewaySecrets(ctx, cfg, app.Log)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("gateway secrets: %w", err)
	}
	app.Gateway = stripe.NewAdapter(stripe.Config{
		SecretKey:         gatewayKey,
		WebhookSecret:     webhookSecret,
		MaxNetworkRetries: cfg.Gateway.MaxNetworkRetries,
	}, app.Log)

	app.Links = postgres.NewCustomerLinkRepository(app.DB)
	app.Members = postgres.NewMemberDirectory(app.DB)
	app.Tiers = postgres.NewTierCatalog(app.DB)
	app.WebhookEvents = postgres.NewWebhookEventRepository(app.DB)
	app.JobRuns = postgres.NewJobRunRepository(app.DB)

	app.Accounts = account.NewResolver(app.Gateway, app.Links, app.Log)
	app.Snapshots = account.NewLoader(app.Gateway, app.Cache, cfg.Membership.StatusCacheTTL, clock, app.Log)
	app.Membership = membership.NewService(
		app.Members, app.Tiers, app.Gateway, app.Accounts, app.Snapshots, app.Locker,
		app.Timeouts, clock,
		membership.Config{
			TrialYears: cfg.Membership.TrialYears,
			LockTTL:    cfg.Membership.LockTTL,
			Currency:   cfg.Gateway.Currency,
		},
		app.Log,
	)

	audit := batch.NewAudit(app.JobRuns, app.Log)
	app.Duplicates = duplicates.NewResolver(
		app.Members, app.Gateway, app.Accounts, app.Snapshots, app.Locker, audit,
		app.Timeouts, clock, cfg.Membership.LockTTL, app.Log,
	)
	app.Aligner = alignment.NewMigrator(
		app.Members, app.Gateway, app.Accounts, app.Snapshots, app.Locker, audit,
		app.Timeouts, clock, cfg.Membership.LockTTL, app.Log,
	)

	return app, nil
}

// BatchOptions returns the configured batch defaults
func (a *App) BatchOptions() batch.Options {
	return BatchOptions(a.Config.Batch)
}

// BatchOptions maps the batch config onto runner options
func BatchOptions(cfg config.BatchConfig) batch.Options {
	opts := batch.DefaultOptions()
	opts.DryRun = cfg.DryRun
	opts.Concurrency = cfg.Concurrency
	opts.RequestsPerSecond = cfg.RequestsPerSecond
	opts.InterBatchDelay = cfg.InterBatchDelay
	opts.MaxRetries = cfg.MaxRetries
	if cfg.PageSize > 0 {
		opts.PageSize = cfg.PageSize
	}
	return opts
}

// Close releases the connections opened by New
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
