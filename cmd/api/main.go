package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/erikwilensky/codecheck/internal/app"
	"github.com/erikwilensky/codecheck/internal/config"
	"github.com/erikwilensky/codecheck/internal/database"
	"github.com/erikwilensky/codecheck/internal/middleware"
	"github.com/erikwilensky/codecheck/internal/observability"
	"github.com/erikwilensky/codecheck/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, logCloser := observability.NewLogger(observability.LoggerConfig{
		Service:    cfg.AppName,
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	defer logCloser.Close()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.Build(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise services")
	}
	defer container.Close()

	if err := database.Migrate(container.DB); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	container.Events.Start(rootCtx)

	fiberApp := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.UploadMaxBytes) + 64*1024,
	})

	middleware.Register(fiberApp, middleware.Config{
		Logger:         &logger,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	router.Register(fiberApp, cfg, router.NewDependencies(container))

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress()).Str("provider", cfg.AIProvider).Msg("server listening")
		if err := fiberApp.Listen(cfg.HTTPAddress()); err != nil {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	waitForShutdown(rootCtx, fiberApp, logger)
}

func waitForShutdown(ctx context.Context, fiberApp *fiber.App, logger zerolog.Logger) {
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fiberApp.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("server stopped")
}
