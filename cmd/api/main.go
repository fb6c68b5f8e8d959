// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/carterperez-dev/leadboard/internal/admin"
	"github.com/carterperez-dev/leadboard/internal/auth"
	"github.com/carterperez-dev/leadboard/internal/config"
	"github.com/carterperez-dev/leadboard/internal/core"
	"github.com/carterperez-dev/leadboard/internal/health"
	"github.com/carterperez-dev/leadboard/internal/middleware"
	"github.com/carterperez-dev/leadboard/internal/policy"
	"github.com/carterperez-dev/leadboard/internal/report"
	"github.com/carterperez-dev/leadboard/internal/server"
	"github.com/carterperez-dev/leadboard/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	generateKeys := flag.Bool("generate-keys", false, "write a new ES256 key pair to the configured paths and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	if *generateKeys {
		if err := writeKeys(*configPath); err != nil {
			slog.Error("key generation failed", "error", err)
			os.Exit(1)
		}
		return
	}

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

	telemetry, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("failed to initialize telemetry", "error", err)
		telemetry = &core.Telemetry{}
	}
	if telemetry.Enabled() {
		logger.Info("OpenTelemetry tracer initialized",
			"endpoint", cfg.Otel.Endpoint,
		)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer closeWith(logger, "database", db.Close)
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		applied, err := db.Migrate(ctx)
		if err != nil {
			return err
		}
		logger.Info("database migrations applied", "versions", applied)
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer closeWith(logger, "redis", redis.Close)
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	mongo, err := core.NewMongo(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer closeWith(logger, "mongo", func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return mongo.Close(closeCtx)
	})
	logger.Info("mongo connected",
		"database", cfg.Mongo.Database,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
		"token_lifetime", jwtManager.TokenLifetime(),
	)

	var (
		registry       auth.Registry
		revocationSize func() int
	)
	switch cfg.Revocation.Backend {
	case config.RevocationBackendMemory:
		memRegistry := auth.NewMemoryRegistry()
		go memRegistry.Run(ctx, cfg.Revocation.PruneInterval)
		registry = memRegistry
		revocationSize = memRegistry.Len
	case config.RevocationBackendPostgres:
		pgRegistry := auth.NewPostgresRegistry(db.DB)
		go pgRegistry.Run(ctx, cfg.Revocation.PruneInterval)
		registry = pgRegistry
	default:
		registry = auth.NewRedisRegistry(redis.Client, cfg.Revocation.KeyPrefix)
	}
	logger.Info("revocation registry initialized",
		"backend", cfg.Revocation.Backend,
	)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(jwtManager, userSvc, registry, logger)
	authHandler := auth.NewHandler(authSvc)

	if master := cfg.Bootstrap.MasterAdmin; master.Enabled() {
		created, bootErr := authSvc.BootstrapMasterAdmin(
			ctx,
			master.Username,
			master.Email,
			master.Mobile,
			master.Password,
		)
		if bootErr != nil {
			return bootErr
		}
		if created {
			logger.Info("master admin account created", "email", master.Email)
		}
	}

	reportSvc, err := report.NewService(report.NewMongoStore(mongo.DB), cfg.Reports)
	if err != nil {
		return err
	}
	reportSvc.SetTracer(telemetry.Tracer("leadboard/report"))
	reportHandler := report.NewHandler(reportSvc)

	healthHandler := health.NewHandler(
		health.Check{Name: "postgres", Checker: db},
		health.Check{Name: "redis", Checker: redis},
		health.Check{Name: "mongo", Checker: mongo},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:           db.Stats,
		RedisStats:        redis.PoolStats,
		DBPing:            db.Ping,
		RedisPing:         redis.Ping,
		MongoPing:         mongo.Ping,
		RevocationBackend: cfg.Revocation.Backend,
		RevocationSize:    revocationSize,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Name: "global",
			Limit: middleware.PerWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen:   true,
			BypassFunc: isHealthProbe,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc)

	loginLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Name: "login",
		Limit: middleware.PerMinute(
			cfg.RateLimit.LoginRequests,
			cfg.RateLimit.LoginBurst,
		),
		KeyFunc:  middleware.KeyByIPScoped("login"),
		FailOpen: true,
	}).Handler

	reportLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Name: "reports",
		Limit: middleware.PerWindow(
			cfg.RateLimit.Requests,
			cfg.RateLimit.Burst,
			cfg.RateLimit.Window,
		),
		KeyFunc:  middleware.KeyByUserAndEndpoint,
		FailOpen: true,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, loginLimiter)
		userHandler.RegisterRoutes(r, authenticator)

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticator)

			userHandler.RegisterAdminRoutes(r)
			adminHandler.RegisterRoutes(r)
		})

		reportHandler.RegisterRoutes(r,
			authenticator,
			middleware.RequirePolicy(policy.ActionViewReports),
			reportLimiter,
		)
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

	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Error("telemetry shutdown error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func writeKeys(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := auth.GenerateKeyPair(cfg.JWT.PrivateKeyPath, cfg.JWT.PublicKeyPath); err != nil {
		return err
	}

	slog.Info("key pair written",
		"private", cfg.JWT.PrivateKeyPath,
		"public", cfg.JWT.PublicKeyPath,
	)
	return nil
}

func isHealthProbe(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/livez", "/readyz":
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/.well-known/")
}

func closeWith(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error(name+" close error", "error", err)
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
