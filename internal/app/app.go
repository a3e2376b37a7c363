// Package app assembles the voice client from configuration.
package app

import (
	"context"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/arunika/voiceclient/adapters/memory"
	"github.com/satriahrh/arunika/voiceclient/adapters/mongo"
	"github.com/satriahrh/arunika/voiceclient/adapters/pulse"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/auth"
	"github.com/satriahrh/arunika/voiceclient/internal/capture"
	"github.com/satriahrh/arunika/voiceclient/internal/config"
	"github.com/satriahrh/arunika/voiceclient/internal/fetch"
	"github.com/satriahrh/arunika/voiceclient/internal/metrics"
	"github.com/satriahrh/arunika/voiceclient/internal/playback"
	"github.com/satriahrh/arunika/voiceclient/internal/websocket"
	"github.com/satriahrh/arunika/voiceclient/usecase"
)

// App is a wired voice client
type App struct {
	Coordinator *usecase.Coordinator
	Connection  *websocket.Client
	Microphone  repositories.MicrophoneProvider
	Speaker     repositories.Speaker
	Registry    *prometheus.Registry

	closers []func()
}

// NewLogger builds the zap logger described by cfg
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = level
	return zapCfg.Build()
}

// New wires every component. Close releases them in reverse order.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Registry: prometheus.NewRegistry()}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(a.Registry)

	// Device credentials are optional against a development server
	var tokens websocket.TokenSource
	if cfg.Server.SerialNumber != "" {
		tokens = auth.NewTokenSource(cfg.Server.AuthURL, cfg.Server.SerialNumber, cfg.Server.SecretKey, nil, logger)
	}

	a.Connection = websocket.NewClient(websocket.Config{
		URL:                  cfg.Server.WebSocketURL,
		QueueCapacity:        cfg.Connection.QueueCapacity,
		StaleAfter:           cfg.Connection.StaleAfter,
		HeartbeatInterval:    cfg.Connection.HeartbeatInterval,
		BackoffBase:          cfg.Connection.BackoffBase,
		MaxReconnectAttempts: cfg.Connection.MaxReconnectAttempts,
		ConnectTimeout:       cfg.Connection.ConnectTimeout,
	}, gorilla.DefaultDialer, tokens, m, logger)
	a.onClose(func() { _ = a.Connection.Close() })

	if err := a.openDevices(cfg.Audio, logger); err != nil {
		a.Close()
		return nil, err
	}

	captureEngine := capture.NewEngine(captureConfig(cfg.Audio), a.Microphone, logger)
	playbackEngine := playback.NewEngine(a.Speaker, logger)

	a.Coordinator = usecase.NewCoordinator(coordinatorConfig(cfg.Audio), usecase.Dependencies{
		Connection: a.Connection,
		Capture:    captureEngine,
		Playback:   playbackEngine,
		Journal:    a.openJournal(ctx, cfg.Mongo, logger),
		Metrics:    m,
	}, logger)
	a.onClose(a.Coordinator.Close)

	a.Coordinator.SetFetcher(fetch.NewFetcher(fetch.Config{
		MaxAttempts:    cfg.Fetch.MaxAttempts,
		AttemptTimeout: cfg.Fetch.AttemptTimeout,
		RetryDelay:     cfg.Fetch.RetryDelay,
		ReadyWait:      cfg.Fetch.ReadyWait,
	}, nil, a.Coordinator, m, logger))

	return a, nil
}

func captureConfig(cfg config.AudioConfig) capture.Config {
	return capture.Config{
		DeviceID:         cfg.DeviceID,
		FallbackDeviceID: cfg.FallbackDeviceID,
		SampleRate:       cfg.SampleRate,
		MaxDurationSec:   cfg.MaxDurationSec,
		VoiceThreshold:   cfg.VoiceThreshold,
		SilenceTimeout:   cfg.SilenceTimeout,
	}
}

// coordinatorConfig leaves the per-turn device override empty so capture
// always starts from the configured microphone and its fallback.
func coordinatorConfig(cfg config.AudioConfig) usecase.Config {
	return usecase.Config{
		SampleRate:     cfg.SampleRate,
		WireSampleRate: cfg.WireSampleRate,
		TickInterval:   cfg.TickInterval,
	}
}

// Close releases everything New opened
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(f func()) {
	a.closers = append(a.closers, f)
}

func (a *App) openDevices(cfg config.AudioConfig, logger *zap.Logger) error {
	if cfg.Backend == config.BackendMemory {
		logger.Info("Using in-memory audio devices")
		a.Microphone = memory.NewMicrophone(repositories.MicrophoneInfo{
			ID:      "memory",
			Name:    "In-memory microphone",
			Default: true,
		})
		a.Speaker = memory.NewSpeaker()
		return nil
	}

	speaker, err := pulse.NewSpeaker()
	if err != nil {
		return err
	}
	a.onClose(func() {
		if err := speaker.Close(); err != nil {
			logger.Warn("Failed to close speaker", zap.Error(err))
		}
	})
	a.Microphone = pulse.NewMicrophone()
	a.Speaker = speaker
	return nil
}

// openJournal connects the MongoDB journal when configured and keeps history
// in process memory otherwise, or when MongoDB is unreachable
func (a *App) openJournal(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) repositories.SessionJournal {
	if cfg.URI == "" {
		return memory.NewJournal()
	}

	store, err := mongo.Connect(ctx, cfg.URI, cfg.Database, logger)
	if err != nil {
		logger.Warn("MongoDB unavailable, keeping session history in memory", zap.Error(err))
		return memory.NewJournal()
	}
	a.onClose(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	})

	journal := store.Journal()
	if err := journal.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to create journal indexes", zap.Error(err))
	}
	return journal
}
