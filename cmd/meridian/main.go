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

	"github.com/meridian-grants/meridian/internal/app"
	"github.com/meridian-grants/meridian/internal/auth"
	"github.com/meridian-grants/meridian/internal/authz"
	"github.com/meridian-grants/meridian/internal/feedback"
	"github.com/meridian-grants/meridian/internal/identity"
	"github.com/meridian-grants/meridian/internal/masterdata"
	"github.com/meridian-grants/meridian/internal/notify"
	"github.com/meridian-grants/meridian/internal/observability"
	"github.com/meridian-grants/meridian/internal/platform/cache"
	"github.com/meridian-grants/meridian/internal/platform/db"
	"github.com/meridian-grants/meridian/internal/projects"
	"github.com/meridian-grants/meridian/internal/proposals"
	"github.com/meridian-grants/meridian/internal/shared"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens := shared.NewTokenStore(redisClient, cfg.TokenTTL)
	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	identityRepo := identity.NewRepository(pool)
	overrideRepo := authz.NewOverrideRepository(pool)
	resolver := authz.NewResolver(identity.NewAccessSource(identityRepo), overrideRepo, cfg.PermissionCacheTTL)
	resolver.SetMetrics(metrics)
	gate := authz.NewGate(resolver, authz.DefaultRouteTable())
	authzMiddleware := authz.Middleware{Gate: gate, Logger: logger, Metrics: metrics}

	identityService := identity.NewService(identityRepo, resolver, auditLogger)
	authService := auth.NewService(identityRepo, tokens)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	notifier := notify.NewAsynqNotifier(asynqClient, identityService, logger)

	masterdataRepo := masterdata.NewPGRepository(pool)
	masterdataService := masterdata.NewService(masterdataRepo)

	proposalsRepo := proposals.NewRepository(pool)
	proposalsService := proposals.NewService(proposalsRepo, identityService, masterdataService, notifier, auditLogger, logger)

	projectsRepo := projects.NewRepository(pool)
	projectsService := projects.NewService(projectsRepo, auditLogger, logger)

	feedbackRepo := feedback.NewPGRepository(pool)
	feedbackService := feedback.NewService(feedbackRepo, auditLogger, logger)

	authzService := authz.NewService(overrideRepo, resolver, auditLogger, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Tokens:            tokens,
		AuthHandler:       auth.NewHandler(logger, authService, identityService),
		IdentityHandler:   identity.NewHandler(logger, identityService, authzMiddleware),
		ProposalsHandler:  proposals.NewHandler(logger, proposalsService, authzMiddleware),
		ProjectsHandler:   projects.NewHandler(logger, projectsService, authzMiddleware),
		FeedbackHandler:   feedback.NewHandler(logger, feedbackService, authzMiddleware),
		MasterDataHandler: masterdata.NewHandler(logger, masterdataService, authzMiddleware),
		AuthzHandler:      authz.NewHandler(logger, authzService, authzMiddleware),
		AuthzMiddleware:   authzMiddleware,
		Metrics:           metrics,
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
