package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/aromapulse/authgate/src/audit"
	"github.com/aromapulse/authgate/src/auth"
	"github.com/aromapulse/authgate/src/cache"
	"github.com/aromapulse/authgate/src/config"
	"github.com/aromapulse/authgate/src/handlers"
	"github.com/aromapulse/authgate/src/logging"
	"github.com/aromapulse/authgate/src/metrics"
	"github.com/aromapulse/authgate/src/middleware"
	"github.com/aromapulse/authgate/src/models"
	"github.com/aromapulse/authgate/src/oauth"
	"github.com/aromapulse/authgate/src/storage/postgres"
	"github.com/aromapulse/authgate/src/token"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.App, cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	redisCache, err := cache.NewRedisCache(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to initialize redis", zap.Error(err))
	}
	defer redisCache.Close()
	logger.Info("redis connected", zap.String("address", cfg.Redis.Address))

	health := handlers.NewHealthHandler(2 * time.Second)
	health.Register("redis", redisCache)

	var (
		accounts  models.AccountStore
		roles     models.RoleStore
		sinks     audit.MultiSink
		loginLogs models.LoginLogStore
	)

	if cfg.Postgres.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err := postgres.New(ctx, cfg.Postgres, logger)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer db.Close()

		if cfg.Postgres.AutoMigrate {
			if err := postgres.Migrate(cfg.Postgres.DSN); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
			logger.Info("migrations applied")
		}

		logRepo := postgres.NewLoginLogRepo(db)
		accountRepo := postgres.NewAccountRepo(db)
		accounts, roles = accountRepo, accountRepo
		loginLogs = logRepo
		sinks = append(sinks, logRepo)
		health.Register("postgres", db)
		logger.Info("postgres connected")
	} else {
		userStore := auth.NewUserStore(redisCache)
		accounts, roles = userStore, userStore
		sinks = append(sinks, audit.NewLogSink(logger))
		logger.Warn("postgres disabled, accounts kept in redis and login logs written to the process log")
	}

	if len(cfg.Audit.Kafka.Brokers) > 0 {
		kafkaSink := audit.NewKafkaSink(cfg.Audit.Kafka.Brokers, cfg.Audit.Kafka.Topic, logger)
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
		logger.Info("login events published to kafka", zap.String("topic", cfg.Audit.Kafka.Topic))
	}

	if len(cfg.Auth.BootstrapAdmins) > 0 && len(cfg.Auth.AdminRoles) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		n, err := auth.PromoteAdmins(ctx, roles, cfg.Auth.BootstrapAdmins, cfg.Auth.AdminRoles[0], logger)
		cancel()
		if err != nil {
			logger.Fatal("failed to bootstrap admins", zap.Error(err))
		}
		logger.Info("admin bootstrap done", zap.Int("promoted", n))
	}

	auditLogger := audit.NewLogger(sinks, cfg.Audit.Timeout, rec, logger)

	tokens, err := token.NewManager(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("failed to build token manager", zap.Error(err))
	}

	providers := oauth.NewProviders(cfg.OAuth, rec)
	if len(providers) == 0 {
		logger.Warn("no oauth providers configured, only password login is available")
	}

	states := auth.NewStateStore(redisCache, cfg.Auth.StateTTL)
	authService := auth.NewService(cfg.Auth, providers, states, accounts, tokens, auditLogger, rec, logger)
	authHandler := auth.NewHandler(authService, cfg.Auth, cfg.App, logger)
	authMiddleware := middleware.NewAuthMiddleware(tokens, cfg.Auth.CookieName, rec, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit, logger)
	defer rateLimiter.Stop()

	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if err := middleware.ConfigureClientIP(r, cfg.Server); err != nil {
		logger.Fatal("invalid client ip settings", zap.Error(err))
	}
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	r.GET("/health", health.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler(reg)))

	authHandler.RegisterRoutes(r.Group("/api/auth"), authMiddleware, rateLimiter.Middleware())

	if loginLogs != nil {
		logHandler := handlers.NewLoginLogHandler(loginLogs, logger)
		admin := r.Group("/api/admin")
		admin.Use(authMiddleware.RequireAuth(), authMiddleware.RequireRole(accounts, cfg.Auth.AdminRoles...))
		{
			admin.GET("/login-logs", logHandler.List)
			admin.GET("/login-logs/user/:id", logHandler.ByUser)
			admin.GET("/login-logs/stats", logHandler.Stats)
			admin.DELETE("/login-logs/cleanup", logHandler.Cleanup)
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	logger.Info("auth gateway running",
		zap.String("port", cfg.Server.Port),
		zap.Int("providers", len(providers)),
		zap.Bool("postgres", cfg.Postgres.Enabled),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Let in-flight login events reach their sinks before the deferred closes run.
	auditLogger.Wait()

	logger.Info("server exited")
}
