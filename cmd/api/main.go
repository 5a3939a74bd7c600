package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-fees-api/internal/config"
	"github.com/noah-isme/gema-fees-api/internal/database"
	"github.com/noah-isme/gema-fees-api/internal/handler"
	"github.com/noah-isme/gema-fees-api/internal/middleware"
	"github.com/noah-isme/gema-fees-api/internal/repository"
	"github.com/noah-isme/gema-fees-api/internal/router"
	"github.com/noah-isme/gema-fees-api/internal/service"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.AppEnv == "development" {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	if redisClient == nil {
		logger.Warn().Msg("redis url not set; billing cache disabled")
	} else {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL, cfg.AppName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to nats")
	}
	if natsConn != nil {
		defer natsConn.Drain()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	events := service.NewEventPublisher(natsConn, cfg.EventPrefix, logger)

	studentRepo := repository.NewBillingStudentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	promotionRepo := repository.NewPromotionRepository(db)

	settingsService := service.NewSettingsService(settingsRepo, cfg.DefaultSettings(), redisClient, validate, logger)
	billingService := service.NewBillingService(studentRepo, settingsService, redisClient, cfg.SummaryCacheTTL, events, validate, logger)
	riskService := service.NewRiskService(studentRepo, settingsService, redisClient, cfg.SummaryCacheTTL, cfg.WorkerLimit, logger)
	promotionService := service.NewPromotionService(studentRepo, promotionRepo, settingsService, redisClient, events, validate, cfg.WorkerLimit, logger)
	seedService := service.NewSeedService(studentRepo, settingsService, validate, cfg.SeedEnabled, cfg.SeedToken, logger)

	checks := map[string]handler.DependencyCheck{
		"database": func(ctx context.Context) error { return database.PingDatabase(ctx, db) },
	}
	if redisClient != nil {
		checks["cache"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	if natsConn != nil {
		checks["events"] = func(ctx context.Context) error { return database.PingNATS(ctx, natsConn) }
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		ErrorHandler: middleware.ErrorHandler(logger),
	})

	middleware.Register(app, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSOrigins})
	router.Register(app, cfg, router.Dependencies{
		BillingHandler:   handler.NewBillingHandler(billingService, logger),
		RiskHandler:      handler.NewRiskHandler(riskService, logger),
		PromotionHandler: handler.NewPromotionHandler(promotionService, logger),
		SettingsHandler:  handler.NewSettingsHandler(settingsService, logger),
		SeedHandler:      handler.NewSeedHandler(seedService, logger),
		HealthChecks:     checks,
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("billing api listening")
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(app, logger)
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
