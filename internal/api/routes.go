// Package api exposes the local control surface of the voice client: health,
// session status, session and recording triggers, and metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/internal/capture"
	"github.com/satriahrh/arunika/voiceclient/usecase"
)

const commandTimeout = 5 * time.Second

// Session is the part of the coordinator the API drives
type Session interface {
	Submit(ctx context.Context, cmd usecase.Command) error
	Status() usecase.Status
	History(ctx context.Context) ([]entities.Transition, error)
}

// InitRoutes initializes all API routes. gatherer may be nil to leave out
// /metrics.
func InitRoutes(e *echo.Echo, session Session, gatherer prometheus.Gatherer, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "arunika-voiceclient",
		})
	})

	e.GET("/status", func(c echo.Context) error {
		return c.JSON(http.StatusOK, session.Status())
	})

	// Session triggers
	s := e.Group("/session")
	s.POST("/start", commandHandler(session, usecase.CommandStartSession, logger))
	s.POST("/end", commandHandler(session, usecase.CommandEndSession, logger))
	s.POST("/reset", commandHandler(session, usecase.CommandReset, logger))
	s.POST("/pause", commandHandler(session, usecase.CommandPause, logger))
	s.POST("/resume", commandHandler(session, usecase.CommandResume, logger))
	s.GET("/history", func(c echo.Context) error {
		return history(c, session, logger)
	})

	// Recording triggers
	r := e.Group("/recording")
	r.POST("/start", commandHandler(session, usecase.CommandStartRecording, logger))
	r.POST("/stop", commandHandler(session, usecase.CommandStopRecording, logger))

	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// commandHandler submits cmd to the coordinator and waits for it to be applied
func commandHandler(session Session, cmd usecase.Command, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), commandTimeout)
		defer cancel()

		if err := session.Submit(ctx, cmd); err != nil {
			status, code := errorStatus(err)
			logger.Warn("Command rejected",
				zap.String("command", cmd.String()),
				zap.Int("status", status),
				zap.Error(err))
			return c.JSON(status, ErrorResponse{
				Error:   code,
				Message: err.Error(),
			})
		}

		logger.Info("Command applied", zap.String("command", cmd.String()))
		return c.JSON(http.StatusOK, CommandResponse{
			Command: cmd.String(),
			Status:  session.Status(),
		})
	}
}

func history(c echo.Context, session Session, logger *zap.Logger) error {
	transitions, err := session.History(c.Request().Context())
	if err != nil {
		logger.Error("Failed to read session history", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history_unavailable",
			Message: "Failed to read session history",
		})
	}
	if transitions == nil {
		transitions = []entities.Transition{}
	}
	return c.JSON(http.StatusOK, HistoryResponse{
		SessionID:   session.Status().Identity.ClientID,
		Transitions: transitions,
	})
}

// errorStatus maps coordinator errors to an HTTP status and error code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, usecase.ErrSessionActive),
		errors.Is(err, usecase.ErrNoSession),
		errors.Is(err, usecase.ErrInvalidTransition):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, capture.ErrNoDevice), errors.Is(err, capture.ErrDeviceBusy):
		return http.StatusServiceUnavailable, "device_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
