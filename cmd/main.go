package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/internal/api"
	"github.com/satriahrh/arunika/voiceclient/internal/app"
	"github.com/satriahrh/arunika/voiceclient/internal/config"
	"github.com/satriahrh/arunika/voiceclient/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		zap.NewExample().Fatal("Failed to create logger", zap.Error(err))
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize voice client", zap.Error(err))
	}
	defer client.Close()

	coordinator := client.Coordinator
	coordinator.SubscribeSession(usecase.SessionObserverFunc(func(previous, current entities.SessionState) {
		logger.Debug("Session state observed",
			zap.String("previous", string(previous)),
			zap.String("current", string(current)))
	}))
	coordinator.SubscribeText(usecase.TextObserverFunc(func(text string) {
		logger.Info("Response text", zap.String("text", text))
	}))
	coordinator.SubscribeErrors(usecase.ErrorObserverFunc(func(err error) {
		logger.Warn("Session error", zap.Error(err))
	}))

	var e *echo.Echo
	if cfg.HTTP.Enabled {
		e = echo.New()
		e.HideBanner = true

		// Middleware
		e.Use(middleware.Logger())
		e.Use(middleware.Recover())

		api.InitRoutes(e, coordinator, client.Registry, logger)

		go func() {
			if err := e.Start(cfg.HTTP.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("shutting down the status server", zap.Error(err))
			}
		}()
	}

	logger.Info("Voice client started",
		zap.String("backend", cfg.Audio.Backend),
		zap.String("server", cfg.Server.WebSocketURL),
		zap.String("clientSessionID", coordinator.Identity().ClientID()))

	if err := coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Coordinator stopped", zap.Error(err))
	}

	logger.Info("Voice client is shutting down...")

	if e != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.Error("Status server forced to shutdown", zap.Error(err))
		}
	}

	logger.Info("Voice client exited")
}
