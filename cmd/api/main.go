// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/stripe/stripe-go/v79"

	"github.com/carterperez-dev/marketplace-access/internal/access"
	"github.com/carterperez-dev/marketplace-access/internal/admin"
	"github.com/carterperez-dev/marketplace-access/internal/auth"
	"github.com/carterperez-dev/marketplace-access/internal/billing"
	"github.com/carterperez-dev/marketplace-access/internal/config"
	"github.com/carterperez-dev/marketplace-access/internal/core"
	"github.com/carterperez-dev/marketplace-access/internal/events"
	"github.com/carterperez-dev/marketplace-access/internal/health"
	"github.com/carterperez-dev/marketplace-access/internal/insights"
	"github.com/carterperez-dev/marketplace-access/internal/jobs"
	"github.com/carterperez-dev/marketplace-access/internal/metrics"
	"github.com/carterperez-dev/marketplace-access/internal/middleware"
	"github.com/carterperez-dev/marketplace-access/internal/navigation"
	"github.com/carterperez-dev/marketplace-access/internal/server"
	"github.com/carterperez-dev/marketplace-access/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	//nolint:errcheck // .env is optional
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
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

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
	)

	var publisher events.Publisher = events.NopPublisher{}
	var healthDeps []health.Dependency
	if cfg.Kafka.Enabled {
		kafkaPublisher := events.NewKafkaPublisher(cfg.Kafka)
		publisher = kafkaPublisher
		healthDeps = append(healthDeps, health.Dependency{
			Name:     "kafka",
			Checker:  kafkaPublisher,
			Optional: true,
		})
		logger.Info("kafka publisher enabled",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.TierTopic,
		)
	}

	if cfg.Billing.StripeSecretKey != "" {
		stripe.Key = cfg.Billing.StripeSecretKey
	}

	resolver := access.NewResolver(access.DefaultCatalog())

	userRepo := user.NewRepository(db.DB)
	tierCache := user.NewRedisTierCache(redis.Client, cfg.Access.TierCacheTTL)
	userSvc := user.NewService(userRepo, tierCache, publisher)
	userHandler := user.NewHandler(userSvc, resolver)

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(authRepo, jwtManager, userSvc, redis.Client, resolver)
	authHandler := auth.NewHandler(authSvc)

	billingSvc := billing.NewService(
		billing.NewRepository(db.DB),
		userSvc,
		resolver.Catalog(),
		cfg.Billing.GracePeriod,
	)
	billingHandler := billing.NewHandler(
		billingSvc,
		cfg.Billing.StripeWebhookSecret,
		cfg.Billing.WebhookTolerance,
	)

	insightsHandler := insights.NewHandler(insights.NewService(userSvc), resolver)
	navigationHandler := navigation.NewHandler(resolver)

	healthHandler := health.NewHandler(db, redis, healthDeps...)

	scheduler := jobs.NewScheduler(logger)
	if cfg.Jobs.Enabled {
		if err := jobs.RegisterMaintenance(scheduler, cfg.Jobs, authSvc, billingSvc); err != nil {
			return err
		}
		scheduler.Start()
	}

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
		DBPing:     db.Ping,
		RedisPing:  redis.Ping,
		Resolver:   resolver,
		Jobs:       scheduler,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
		ServiceName:   cfg.Otel.ServiceName,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	if cfg.Metrics.Enabled {
		router.Use(metrics.Middleware)
	}
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	// Every authenticated request sees the profile tier, not the token's
	// snapshot, and is limited at that tier's rate.
	refreshTier := middleware.RefreshTier(userSvc)
	tiered := middleware.TieredRateLimiter(
		redis.Client,
		middleware.TierLimitsFromConfig(cfg.RateLimit),
	)
	authenticator := chain(middleware.Authenticator(authSvc), refreshTier, tiered)
	optionalAuth := chain(middleware.OptionalAuth(authSvc), refreshTier, tiered)
	adminOnly := middleware.RequireAdmin

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		r.Post("/users", authHandler.Register)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)

		navigationHandler.RegisterRoutes(r, optionalAuth)
		billingHandler.RegisterRoutes(r, authenticator)
		insightsHandler.RegisterRoutes(r, authenticator)
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

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("job scheduler shutdown error", "error", err)
	}

	if err := publisher.Close(); err != nil {
		logger.Error("event publisher close error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// chain applies middlewares so the first one runs outermost.
func chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
