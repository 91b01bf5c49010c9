// AngelaMos | 2026
// serve.go

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/carterperez-dev/skyline-backend/internal/admin"
	"github.com/carterperez-dev/skyline-backend/internal/auth"
	"github.com/carterperez-dev/skyline-backend/internal/config"
	"github.com/carterperez-dev/skyline-backend/internal/core"
	"github.com/carterperez-dev/skyline-backend/internal/entitlement"
	"github.com/carterperez-dev/skyline-backend/internal/health"
	"github.com/carterperez-dev/skyline-backend/internal/ipban"
	"github.com/carterperez-dev/skyline-backend/internal/license"
	"github.com/carterperez-dev/skyline-backend/internal/middleware"
	"github.com/carterperez-dev/skyline-backend/internal/payment"
	"github.com/carterperez-dev/skyline-backend/internal/ratelimit"
	"github.com/carterperez-dev/skyline-backend/internal/server"
	"github.com/carterperez-dev/skyline-backend/internal/user"
)

const (
	drainDelay      = 5 * time.Second
	captchaTimeout  = 10 * time.Second
	rateLimitPrefix = "skyline:ratelimit:"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, db, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}()

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"driver", cfg.Database.Driver,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redis.Enabled() {
		logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)
	}

	limiter, local := newLimiter(cfg.RateLimit, redis, logger)
	defer local.Close()
	logger.Info("rate limiter ready", "backend", cfg.RateLimit.Backend)

	userSvc := user.NewService(db.DB, user.NewRepository(db.DB))
	banSvc := ipban.NewService(ipban.NewRepository(db.DB))
	authSvc := auth.NewService(
		auth.NewRepository(db.DB),
		userSvc,
		banSvc,
		authServiceConfig(cfg.Auth),
	)
	keySvc := license.NewService(db.DB, license.NewRepository(db.DB), license.Config{
		Prefix:   cfg.License.Prefix,
		MaxBatch: cfg.License.MaxBatch,
	})
	paymentSvc := payment.NewService(
		db.DB,
		payment.NewRepository(db.DB),
		entitlement.NewPlans(cfg.Payment.Plans, cfg.Payment.DefaultPlan),
		payment.SimulatedVerifier{Delay: cfg.Payment.VerifyDelay},
	)
	adminSvc := admin.NewService(db.DB, userSvc, banSvc, keySvc)

	deps := []health.Dependency{{Name: "database", Checker: db}}
	stats := admin.Stats{DBStats: db.Stats, DBPing: db.Ping}
	if redis.Enabled() {
		deps = append(deps, health.Dependency{Name: "redis", Checker: redis})
		stats.RedisStats = redis.PoolStats
		stats.RedisPing = redis.Ping
	} else {
		deps = append(deps, health.Dependency{Name: "redis"})
	}
	healthHandler := health.NewHandler(deps...)

	rlCfg := middleware.RateLimitConfigFrom(cfg.RateLimit)
	rlCfg.BypassFunc = func(r *http.Request) bool {
		return health.IsProbe(r.URL.Path)
	}

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		CORS:          cfg.CORS,
		Production:    cfg.IsProduction(),
		HealthHandler: healthHandler,
		Logger:        logger,
	})
	srv.Mount(server.API{
		Auth:    auth.NewHandler(authSvc),
		Users:   user.NewHandler(userSvc),
		Keys:    license.NewHandler(keySvc),
		Payment: payment.NewHandler(paymentSvc),
		Admin: admin.NewHandler(admin.HandlerConfig{
			Service:  adminSvc,
			Sessions: authSvc,
			Stats:    stats,
		}),
		Sessions: authSvc,
		Bans:     banSvc,
		Limiter:  middleware.NewRateLimiter(limiter, rlCfg),
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// newLimiter returns the request limiter for the configured backend and the
// in-process limiter that backs it up. The caller closes the local one.
func newLimiter(
	cfg config.RateLimitConfig,
	redis *core.Redis,
	logger *slog.Logger,
) (ratelimit.Limiter, *ratelimit.MemoryLimiter) {
	local := ratelimit.NewMemoryLimiter(
		ratelimit.WithCleanupInterval(cfg.CleanupInterval),
	)

	switch cfg.Backend {
	case config.RateLimitRedis:
		primary := ratelimit.NewRedisLimiter(redis.Client, rateLimitPrefix)
		return ratelimit.NewFallback(primary, local, logger), local
	case config.RateLimitGCRA:
		primary := ratelimit.NewGCRALimiter(redis.Client, rateLimitPrefix)
		return ratelimit.NewFallback(primary, local, logger), local
	default:
		return local, local
	}
}

func authServiceConfig(cfg config.AuthConfig) auth.ServiceConfig {
	sc := auth.ServiceConfig{SessionTTL: cfg.SessionTTL}

	if cfg.CaptchaEnabled {
		sc.Human = auth.NewRecaptchaVerifier(
			cfg.CaptchaSecret,
			cfg.CaptchaVerifyURL,
			captchaTimeout,
		)
	}

	if cfg.CheckEmailDomain {
		sc.Domains = auth.NewMXChecker(cfg.DomainLookupTimeout)
	}

	return sc
}
