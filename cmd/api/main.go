package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"

	"github.com/quecocinohoy/backend/config"
	"github.com/quecocinohoy/backend/internal/api"
	"github.com/quecocinohoy/backend/internal/database"
	"github.com/quecocinohoy/backend/internal/gateway"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/middleware"
	"github.com/quecocinohoy/backend/internal/server"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.L.Fatalw("failed to load configuration", "error", err)
	}

	log, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.L.Fatalw("failed to build logger", "error", err)
	}
	logger.L = log
	defer func() { _ = log.Sync() }()

	sentryEnabled := initSentry(cfg, log)
	if sentryEnabled {
		defer sentry.Flush(2 * time.Second)
	}

	db, err := database.New(cfg, log)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db.DB); err != nil {
		log.Fatalw("failed to run migrations", "error", err)
	}

	// redis backs the entitlement cache and the generation quota; both are
	// optional.
	var redisClient *redis.Client
	if rc, err := database.NewRedisClient(cfg.Redis); err != nil {
		log.Warnw("redis unavailable, running without cache and generation quota", "error", err)
	} else {
		redisClient = rc
		defer redisClient.Close()
	}

	var imageStore storage.ImageStore
	if s3Cfg, err := config.NewS3Config(context.Background(), cfg.Storage); err != nil {
		log.Warnw("s3 unavailable, images will be returned inline", "error", err)
	} else {
		imageStore = storage.NewS3ImageStore(s3Cfg)
	}

	entitlements := service.NewEntitlementService(db.DB, redisClient, log)
	history := service.NewHistoryService(db.DB, log)
	mercadoPago := gateway.NewMercadoPagoClient(cfg.Gateway.BaseURL, cfg.Gateway.AccessToken)

	recipeParams := service.RecipeServiceParams{
		LLM:          service.NewLLMService(cfg.LLM, log),
		Images:       service.NewImageService(cfg.Image, imageStore, log),
		Entitlements: entitlements,
		History:      history,
		QuotaConfig: service.QuotaConfig{
			FreePerHour:    cfg.App.FreeGenerationsPerHour,
			PremiumPerHour: cfg.App.PremiumGenerationsPerHour,
		},
		ImageTimeout: cfg.Image.Timeout,
		Logger:       log,
	}
	if redisClient != nil {
		recipeParams.Quota = middleware.NewGenerationRateLimiter(redisClient)
	}

	srv := server.New(cfg, api.Services{
		Auth:          service.NewAuthService(db.DB, cfg.JWT.Secret, cfg.JWT.TTL, log),
		Entitlements:  entitlements,
		Subscriptions: service.NewSubscriptionService(db.DB, mercadoPago, entitlements, cfg.App.FrontendURL, log),
		Recipes:       service.NewRecipeService(recipeParams),
		Favorites:     service.NewFavoriteService(db.DB, entitlements, log),
		Shares:        service.NewShareService(db.DB, entitlements, cfg.App.FrontendURL, log),
		History:       history,
		Health:        api.NewHealthHandler(db, redisClient, log),
		Logger:        log,
	}, log, server.Options{SentryEnabled: sentryEnabled})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			log.Errorw("server error", "error", err)
		}
	case sig := <-quit:
		log.Infow("received signal", "signal", sig.String())
	}

	log.Infow("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server shutdown error", "error", err)
	}
	log.Infow("server stopped")
}

func initSentry(cfg *config.Config, log *logger.Logger) bool {
	if cfg.Sentry.DSN == "" {
		return false
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Env,
		EnableTracing:    true,
		TracesSampleRate: cfg.Sentry.SampleRate,
		AttachStacktrace: true,
	})
	if err != nil {
		log.Warnw("failed to initialize sentry", "error", err)
		return false
	}
	return true
}
