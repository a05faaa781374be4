// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credity Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/sync/errgroup"

	"github.com/anerua/Credity/internal/account"
	accountpg "github.com/anerua/Credity/internal/account/postgres"
	"github.com/anerua/Credity/internal/app"
	"github.com/anerua/Credity/internal/config"
	"github.com/anerua/Credity/internal/httpapi"
	"github.com/anerua/Credity/internal/logging"
	"github.com/anerua/Credity/internal/observability"
	"github.com/anerua/Credity/internal/session"
	sessionpg "github.com/anerua/Credity/internal/session/postgres"
	sessionredis "github.com/anerua/Credity/internal/session/redis"
	"github.com/anerua/Credity/internal/store/memory"
)

const serviceName = "credity"

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account API",
		Long: `Start the account HTTP API together with the metrics/health
endpoint and the expired refresh-token sweeper.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, nil)
		},
	}

	defaults := config.Default()
	cmd.Flags().String("addr", defaults.HTTP.Addr, "account API listen address")
	cmd.Flags().String("metrics-addr", defaults.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database-url", "", "PostgreSQL URL")
	cmd.Flags().Bool("auto-migrate", defaults.Database.AutoMigrate, "apply pending migrations at startup")
	cmd.Flags().String("storage", defaults.Storage, "account storage (postgres or memory)")
	cmd.Flags().String("sessions-backend", defaults.Sessions.Backend, "refresh token store (postgres, redis or memory)")
	cmd.Flags().String("log-format", defaults.Log.Format, "log format (json or text)")
	cmd.Flags().String("log-level", defaults.Log.Level, "log level (debug, info, warn or error)")

	return cmd
}

// backends are the stores selected by the configuration.
type backends struct {
	accounts account.Repository
	tokens   session.RefreshTokenStore
	ready    observability.ReadinessChecker
	closers  []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func (b *backends) addCheck(check observability.ReadinessChecker) {
	prev := b.ready
	if prev == nil {
		b.ready = check
		return
	}
	b.ready = func(ctx context.Context) error {
		if err := prev(ctx); err != nil {
			return err
		}
		return check(ctx)
	}
}

// openBackends connects the configured stores, migrating the schema first
// when database.auto_migrate is set.
func openBackends(ctx context.Context, cfg *config.Config, deps *Deps, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Storage == config.BackendPostgres {
		if cfg.Database.AutoMigrate {
			if err := autoMigrate(cfg.Database.URL, deps, logger); err != nil {
				return nil, err
			}
		}
		pool, err := deps.ConnectDB(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
		}
		b.closers = append(b.closers, pool.Close)
		b.addCheck(pool.Ping)
		b.accounts = accountpg.NewAccountRepository(pool)
		if cfg.Sessions.Backend == config.BackendPostgres {
			b.tokens = sessionpg.NewRefreshTokenStore(pool)
		}
		logger.Info("connected to database")
	} else {
		b.accounts = memory.NewAccountRepository()
		logger.Warn("accounts are kept in memory and lost on exit")
	}

	switch cfg.Sessions.Backend {
	case config.BackendRedis:
		client := deps.RedisClientFactory(cfg.Redis)
		b.closers = append(b.closers, func() {
			if err := client.Close(); err != nil {
				logger.Debug("error closing redis client", "error", err)
			}
		})
		if err := client.Ping(ctx).Err(); err != nil {
			b.Close()
			return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
		}
		b.addCheck(func(ctx context.Context) error { return client.Ping(ctx).Err() })
		b.tokens = sessionredis.NewRefreshTokenStore(client)
	case config.BackendMemory:
		b.tokens = memory.NewRefreshTokenStore()
	}

	return b, nil
}

func autoMigrate(url string, deps *Deps, logger *slog.Logger) error {
	m, err := deps.MigratorFactory(url)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "list pending migrations").Wrap(err)
	}
	if len(pending) == 0 {
		logger.Info("database schema is current")
		return nil
	}
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
	}
	logger.Info("database migrated", "applied", len(pending))
	return nil
}

// installPropagator reads W3C traceparent and baggage headers from incoming
// requests, so server spans and their log lines carry the caller's trace.
func installPropagator() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// runServe validates cfg, wires the service and blocks until ctx is done or
// a component fails.
func runServe(ctx context.Context, cfg *config.Config, deps *Deps) error {
	deps = deps.withDefaults()

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.SetDefault(serviceName, version, cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("operation", "set up logging").Wrap(err)
	}

	installPropagator()

	logger.Info("starting credity",
		"addr", cfg.HTTP.Addr,
		"storage", cfg.Storage,
		"sessions_backend", cfg.Sessions.Backend,
	)

	b, err := openBackends(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, b.ready, logger)
		metrics = obsServer.Metrics()
	}

	handler, err := buildHandler(cfg, b, metrics, logger)
	if err != nil {
		return err
	}
	api := httpapi.NewServer(cfg.HTTP.Addr, handler, cfg.HTTP.ReadHeaderTimeout, logger)

	sweeperOpts := []session.SweeperOption{}
	if metrics != nil {
		sweeperOpts = append(sweeperOpts, session.WithSweepCounter(metrics))
	}
	sweeper := session.NewSweeper(b.tokens, cfg.Sessions.SweepInterval, logger, sweeperOpts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return api.Run(gctx) })
	if obsServer != nil {
		g.Go(func() error { return obsServer.Run(gctx) })
	}
	g.Go(func() error { return sweeper.Run(gctx) })

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// buildHandler assembles the use-case services and the gin router. A nil
// metrics disables request and auth-event recording.
func buildHandler(cfg *config.Config, b *backends, metrics *observability.Metrics, logger *slog.Logger) (*gin.Engine, error) {
	signer, err := session.NewSigner([]byte(cfg.Sessions.Secret), cfg.Sessions.Issuer)
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewService(b.tokens, b.accounts, signer, cfg.Session(), session.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	credentials, err := account.NewCredentialService(
		b.accounts,
		account.NewUpgradingHasher(account.NewArgon2idHasher()),
		account.DefaultPasswordPolicy(),
		sessions,
		account.WithLogger(logger),
		account.WithEmailVerifiedDefault(cfg.Accounts.EmailVerifiedDefault),
		account.WithLockout(cfg.Accounts.Lockout),
	)
	if err != nil {
		return nil, err
	}

	appOpts := []app.Option{app.WithLogger(logger)}
	routerCfg := httpapi.RouterConfig{
		Prefix:         cfg.HTTP.Prefix,
		Limiter:        httpapi.NewRateLimiter(cfg.HTTP.RateLimit.RPS, cfg.HTTP.RateLimit.Burst),
		ServiceName:    serviceName,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Logger:         logger,
	}
	if metrics != nil {
		appOpts = append(appOpts, app.WithEventRecorder(metrics))
		routerCfg.Observer = metrics
	}

	gin.SetMode(gin.ReleaseMode)
	return httpapi.NewRouter(app.NewAccountService(credentials, sessions, appOpts...), routerCfg), nil
}
