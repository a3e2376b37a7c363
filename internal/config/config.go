// Package config loads the client configuration from a .env file, an
// optional YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the environment variable holding the YAML config path
const ConfigPathEnv = "ARUNIKA_CONFIG"

// Audio backends
const (
	BackendPulse  = "pulse"
	BackendMemory = "memory"
)

// Config represents the complete client configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Audio      AudioConfig      `yaml:"audio"`
	Connection ConnectionConfig `yaml:"connection"`
	Fetch      FetchConfig      `yaml:"fetch"`
	HTTP       HTTPConfig       `yaml:"http"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig points at the conversation server and holds the device credentials
type ServerConfig struct {
	WebSocketURL string `yaml:"websocket_url"`
	AuthURL      string `yaml:"auth_url"`
	SerialNumber string `yaml:"serial_number"`
	SecretKey    string `yaml:"secret_key"`
}

// AudioConfig contains capture and playback parameters
type AudioConfig struct {
	Backend          string        `yaml:"backend"` // "pulse" or "memory"
	DeviceID         string        `yaml:"device_id"`
	FallbackDeviceID string        `yaml:"fallback_device_id"`
	SampleRate       int           `yaml:"sample_rate"`
	WireSampleRate   int           `yaml:"wire_sample_rate"`
	MaxDurationSec   int           `yaml:"max_duration_sec"`
	VoiceThreshold   float64       `yaml:"voice_threshold"`
	SilenceTimeout   time.Duration `yaml:"silence_timeout"`
	TickInterval     time.Duration `yaml:"tick_interval"`
}

// ConnectionConfig contains websocket client parameters
type ConnectionConfig struct {
	QueueCapacity        int           `yaml:"queue_capacity"`
	StaleAfter           time.Duration `yaml:"stale_after"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	BackoffBase          time.Duration `yaml:"backoff_base"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
}

// FetchConfig contains streamed audio download parameters
type FetchConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	ReadyWait      time.Duration `yaml:"ready_wait"`
}

// HTTPConfig contains the local status API configuration
type HTTPConfig struct {
	Address string `yaml:"address"`
	Enabled bool   `yaml:"enabled"`
}

// MongoConfig contains the session journal database. The journal is disabled
// when URI is empty.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			WebSocketURL: "ws://localhost:8080/ws",
			AuthURL:      "http://localhost:8080",
		},
		Audio: AudioConfig{
			Backend:        BackendPulse,
			SampleRate:     16000,
			WireSampleRate: 16000,
			MaxDurationSec: 60,
			VoiceThreshold: 0.02,
			SilenceTimeout: 1500 * time.Millisecond,
			TickInterval:   50 * time.Millisecond,
		},
		Connection: ConnectionConfig{
			QueueCapacity:        50,
			StaleAfter:           30 * time.Second,
			HeartbeatInterval:    10 * time.Second,
			BackoffBase:          time.Second,
			MaxReconnectAttempts: 5,
			ConnectTimeout:       10 * time.Second,
		},
		Fetch: FetchConfig{
			MaxAttempts:    3,
			AttemptTimeout: 30 * time.Second,
			RetryDelay:     time.Second,
			ReadyWait:      5 * time.Second,
		},
		HTTP: HTTPConfig{
			Address: "127.0.0.1:8090",
			Enabled: true,
		},
		Mongo: MongoConfig{
			Database: "arunika",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. A .env file in the working directory is
// loaded first when present, then the YAML file named by ARUNIKA_CONFIG, then
// individual environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(ConfigPathEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	texts := map[string]*string{
		"ARUNIKA_WS_URL":        &c.Server.WebSocketURL,
		"ARUNIKA_AUTH_URL":      &c.Server.AuthURL,
		"DEVICE_SERIAL_NUMBER":  &c.Server.SerialNumber,
		"DEVICE_SECRET_KEY":     &c.Server.SecretKey,
		"AUDIO_BACKEND":         &c.Audio.Backend,
		"AUDIO_DEVICE":          &c.Audio.DeviceID,
		"AUDIO_FALLBACK_DEVICE": &c.Audio.FallbackDeviceID,
		"HTTP_ADDRESS":          &c.HTTP.Address,
		"MONGODB_URI":           &c.Mongo.URI,
		"MONGODB_DATABASE":      &c.Mongo.Database,
		"LOG_LEVEL":             &c.Logging.Level,
		"LOG_FORMAT":            &c.Logging.Format,
	}
	for key, dst := range texts {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"AUDIO_SAMPLE_RATE":      &c.Audio.SampleRate,
		"AUDIO_WIRE_SAMPLE_RATE": &c.Audio.WireSampleRate,
		"MAX_RECONNECT_ATTEMPTS": &c.Connection.MaxReconnectAttempts,
		"FETCH_MAX_ATTEMPTS":     &c.Fetch.MaxAttempts,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"SILENCE_TIMEOUT":    &c.Audio.SilenceTimeout,
		"HEARTBEAT_INTERVAL": &c.Connection.HeartbeatInterval,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = d
		}
	}

	if v, ok := lookup("VOICE_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid VOICE_THRESHOLD %q: %w", v, err)
		}
		c.Audio.VoiceThreshold = f
	}
	if v, ok := lookup("HTTP_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid HTTP_ENABLED %q: %w", v, err)
		}
		c.HTTP.Enabled = b
	}
	return nil
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Connection.Validate(); err != nil {
		return fmt.Errorf("connection config: %w", err)
	}
	if err := c.Fetch.Validate(); err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}
	if c.HTTP.Enabled && c.HTTP.Address == "" {
		return fmt.Errorf("http config: address cannot be empty when HTTP is enabled")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	u, err := url.Parse(s.WebSocketURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("websocket_url must be a ws:// or wss:// URL, got %q", s.WebSocketURL)
	}
	if s.SerialNumber != "" && s.AuthURL == "" {
		return fmt.Errorf("auth_url cannot be empty when a serial number is set")
	}
	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.Backend != BackendPulse && a.Backend != BackendMemory {
		return fmt.Errorf("backend must be 'pulse' or 'memory', got '%s'", a.Backend)
	}
	if a.SampleRate < 8000 || a.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 Hz, got %d", a.SampleRate)
	}
	if a.WireSampleRate < 8000 || a.WireSampleRate > 48000 {
		return fmt.Errorf("wire_sample_rate must be between 8000 and 48000 Hz, got %d", a.WireSampleRate)
	}
	if a.MaxDurationSec < 1 {
		return fmt.Errorf("max_duration_sec must be at least 1, got %d", a.MaxDurationSec)
	}
	if a.VoiceThreshold <= 0 || a.VoiceThreshold >= 1 {
		return fmt.Errorf("voice_threshold must be between 0 and 1 (exclusive), got %f", a.VoiceThreshold)
	}
	if a.SilenceTimeout <= 0 {
		return fmt.Errorf("silence_timeout must be positive, got %s", a.SilenceTimeout)
	}
	if a.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %s", a.TickInterval)
	}
	return nil
}

// Validate validates connection configuration
func (c *ConnectionConfig) Validate() error {
	if c.QueueCapacity < 1 {
		return fmt.Errorf("queue_capacity must be at least 1, got %d", c.QueueCapacity)
	}
	if c.MaxReconnectAttempts < 1 {
		return fmt.Errorf("max_reconnect_attempts must be at least 1, got %d", c.MaxReconnectAttempts)
	}
	if c.HeartbeatInterval <= 0 || c.BackoffBase <= 0 || c.ConnectTimeout <= 0 || c.StaleAfter <= 0 {
		return fmt.Errorf("durations must be positive")
	}
	return nil
}

// Validate validates fetch configuration
func (f *FetchConfig) Validate() error {
	if f.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", f.MaxAttempts)
	}
	if f.AttemptTimeout <= 0 || f.ReadyWait <= 0 || f.RetryDelay < 0 {
		return fmt.Errorf("attempt_timeout and ready_wait must be positive")
	}
	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'console', got '%s'", l.Format)
	}
	return nil
}
