package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/automation-global/platform/internal/app"
	"github.com/automation-global/platform/internal/auth"
	"github.com/automation-global/platform/internal/automations"
	"github.com/automation-global/platform/internal/observability"
	"github.com/automation-global/platform/internal/platform/cache"
	"github.com/automation-global/platform/internal/platform/db"
	"github.com/automation-global/platform/internal/shared"
	"github.com/automation-global/platform/internal/tenant"
	"github.com/automation-global/platform/internal/users"
	"github.com/automation-global/platform/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "platform_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	evaluator := tenant.NewEvaluator(logger, metrics.Registerer())
	gates := tenant.NewGates(evaluator, metrics.Registerer())
	tenantRepo := tenant.NewRepository(dbpool)
	resolver := tenant.NewResolver(tenantRepo, evaluator, logger)
	tenantService := tenant.NewService(tenantRepo, resolver, evaluator, gates, auditLogger, logger)
	tenantMW := tenant.Middleware{Resolver: resolver, Gates: gates, Logger: logger}
	tenantHandler := tenant.NewHandler(logger, tenantService, tenantMW, metrics)

	authRepo := auth.NewPGRepository(dbpool)
	authService := auth.NewService(authRepo, tenantRepo, logger)
	authHandler := auth.NewHandler(logger, authService, tenantService, sessionManager)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, tenantMW)

	automationsRepo := automations.NewRepository(dbpool)
	automationsService := automations.NewService(automationsRepo, evaluator, auditLogger, logger)
	automationsHandler := automations.NewHandler(logger, automationsService, tenantMW)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		AuthHandler:        authHandler,
		TenantHandler:      tenantHandler,
		UsersHandler:       usersHandler,
		AutomationsHandler: automationsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
