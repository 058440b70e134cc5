package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/tablegate/tablegate/internal/auth"
	"github.com/tablegate/tablegate/internal/background"
	"github.com/tablegate/tablegate/internal/config"
	"github.com/tablegate/tablegate/internal/database"
	"github.com/tablegate/tablegate/internal/handlers"
	middlewareCustom "github.com/tablegate/tablegate/internal/middleware"
	"github.com/tablegate/tablegate/internal/notify"
	"github.com/tablegate/tablegate/internal/ratelimit"
	"github.com/tablegate/tablegate/internal/repositories"
	"github.com/tablegate/tablegate/internal/routes"
	"github.com/tablegate/tablegate/internal/services"
	pkglogger "github.com/tablegate/tablegate/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	ledgerRepo := repositories.NewAttemptLedgerRepository(db)
	settingRepo := repositories.NewSettingRepository(db)
	storeRepo := repositories.NewStoreRepository(db)

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Notification channels; both are optional.
	var notifiers []notify.Notifier
	if cfg.Notify.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.Timeout))
	}
	if cfg.Notify.SESRegion != "" && cfg.Notify.SESFromAddress != "" && cfg.Notify.SESToAddress != "" {
		ses, err := notify.NewSES(cfg.Notify.SESRegion, cfg.Notify.SESFromAddress, cfg.Notify.SESToAddress)
		if err != nil {
			logger.Error("failed to initialize SES notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifiers = append(notifiers, ses)
	}
	dispatcher := notify.NewDispatcher(logger, cfg.Notify.Timeout, cfg.Notify.BufferSize, notifiers...)
	defer dispatcher.Close()

	// Login guard
	loginGuard := services.NewLoginGuard(ledgerRepo, settingRepo, dispatcher, logger, auditLogger, services.LoginGuardPolicy{
		MaxAttempts:   cfg.Auth.DefaultMaxAttempts,
		BlockDuration: cfg.Auth.DefaultBlockDuration,
	})

	// Gateway rate-limit window store. Redis when configured, otherwise the
	// process-local store.
	var windowStore ratelimit.Store
	if cfg.Gateway.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Gateway.RedisURL)
		if err != nil {
			logger.Error("invalid GATEWAY_REDIS_URL", slog.Any("error", err))
			os.Exit(1)
		}
		windowStore = ratelimit.NewRedisStore(redis.NewClient(opts), cfg.Gateway.MaxRequests, cfg.Gateway.WindowDuration)
		logger.Info("gateway rate limiting backed by redis")
	} else {
		windowStore = ratelimit.NewMemoryStore(cfg.Gateway.MaxRequests, cfg.Gateway.WindowDuration)
	}

	gatewayGuard := services.NewGatewayGuard(cfg.Gateway.Secret, windowStore, storeRepo, logger, auditLogger)

	// Auth orchestration
	tokenManager := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})
	authService := services.NewAuthService(userRepo, loginGuard, tokenManager, timingDelay, logger, auditLogger)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	gatewayHandler := handlers.NewGatewayHandler(gatewayGuard)
	healthHandler := handlers.NewHealthHandler(db)

	// Background cleanup
	cleanupManager := background.NewCleanupManager(ledgerRepo, storeRepo, logger, cfg.Auth.CleanupInterval)

	// Router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.NewCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, gatewayHandler, healthHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
