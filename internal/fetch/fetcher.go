// Package fetch downloads synthesized speech referenced by the server,
// retrying the streaming endpoint and then direct file URLs.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/internal/codec"
	"github.com/satriahrh/arunika/voiceclient/internal/metrics"
)

const (
	defaultMaxAttempts    = 3
	defaultAttemptTimeout = 30 * time.Second
	defaultRetryDelay     = time.Second
	defaultReadyWait      = 5 * time.Second
	defaultMaxBodyBytes   = 32 << 20
)

var (
	// ErrAllAttemptsFailed is returned when streaming and every direct
	// candidate failed and no fallback text was supplied
	ErrAllAttemptsFailed = errors.New("all fetch attempts failed")

	errNotReady = errors.New("audio not ready in time")
)

// Config holds retry and timeout settings
type Config struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	RetryDelay     time.Duration
	// ReadyWait bounds the time from response headers until the body is
	// fully loaded
	ReadyWait    time.Duration
	MaxBodyBytes int64
}

// Request describes one audio fetch
type Request struct {
	URL          string
	FormatHint   string
	MaxAttempts  int
	FallbackText string
}

// Result is the outcome of a fetch. When TextOnly is set Audio is empty and
// the turn should be shown as FallbackText.
type Result struct {
	Audio        codec.Audio
	Source       string
	Direct       bool
	Attempts     int
	TextOnly     bool
	FallbackText string
}

// Reporter receives delivery status for every attempt
type Reporter interface {
	ReportStreamingStatus(ctx context.Context, status, url, errMsg string) error
}

// Fetcher downloads audio with bounded retries. Fetch blocks; callers run it
// off the scheduling goroutine and hand the Result back.
type Fetcher struct {
	cfg      Config
	client   *http.Client
	reporter Reporter
	metrics  *metrics.Metrics
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// NewFetcher creates a fetcher. client may be nil to use a default client;
// reporter and m may be nil.
func NewFetcher(cfg Config, client *http.Client, reporter Reporter, m *metrics.Metrics, logger *zap.Logger) *Fetcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.ReadyWait <= 0 {
		cfg.ReadyWait = defaultReadyWait
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if client == nil {
		client = &http.Client{}
	}
	return &Fetcher{
		cfg:      cfg,
		client:   client,
		reporter: reporter,
		metrics:  m,
		logger:   logger,
		sleep:    sleepContext,
		now:      time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch retries the streaming URL, then falls back to direct download
// candidates. Cancelling ctx aborts at the next suspension point.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (Result, error) {
	attempts := req.MaxAttempts
	if attempts <= 0 {
		attempts = f.cfg.MaxAttempts
	}
	format := codec.ParseFormatHint(req.FormatHint)
	start := f.now()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := f.sleep(ctx, f.cfg.RetryDelay); err != nil {
				return Result{}, err
			}
		}

		audio, err := f.try(ctx, "stream", req.URL, format, attempt)
		if err == nil {
			f.metrics.ObserveFetch(f.now().Sub(start))
			return Result{Audio: audio, Source: req.URL, Attempts: attempt}, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		lastErr = err
	}

	candidates := DirectCandidates(req.URL)
	if len(candidates) > 0 {
		f.logger.Info("Streaming fetch exhausted, trying direct download",
			zap.String("url", req.URL),
			zap.Int("candidates", len(candidates)))
	}
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		audio, err := f.try(ctx, "direct", candidate, candidateFormat(candidate, format), i+1)
		if err == nil {
			f.metrics.ObserveFetch(f.now().Sub(start))
			return Result{Audio: audio, Source: candidate, Direct: true, Attempts: attempts + i + 1}, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		lastErr = err
	}

	if req.FallbackText != "" {
		f.logger.Warn("Audio fetch failed, degrading to text",
			zap.String("url", req.URL),
			zap.Error(lastErr))
		f.metrics.RecordTextFallback()
		return Result{TextOnly: true, FallbackText: req.FallbackText, Attempts: attempts + len(candidates)}, nil
	}

	return Result{}, fmt.Errorf("%w: %s after %d attempts: %v",
		ErrAllAttemptsFailed, req.URL, attempts+len(candidates), lastErr)
}

// try performs one reported attempt
func (f *Fetcher) try(ctx context.Context, kind, url string, format codec.Format, attempt int) (codec.Audio, error) {
	f.report(ctx, domain.StreamingStarted, url, "")

	audio, err := f.download(ctx, url, format)
	f.metrics.RecordFetchAttempt(kind, err == nil)
	if err != nil {
		f.logger.Warn("Audio fetch attempt failed",
			zap.String("kind", kind),
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Error(err))
		f.report(ctx, domain.StreamingFailed, url, err.Error())
		return codec.Audio{}, err
	}

	f.logger.Info("Audio fetched",
		zap.String("kind", kind),
		zap.String("url", url),
		zap.Int("attempt", attempt),
		zap.Duration("duration", audio.Duration()))
	f.report(ctx, domain.StreamingCompleted, url, "")
	return audio, nil
}

// download fetches and decodes one URL within the attempt timeout. The body
// must be fully loaded within ReadyWait of the response headers.
func (f *Fetcher) download(ctx context.Context, url string, format codec.Format) (codec.Audio, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return codec.Audio{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Accept", acceptHeader(format))

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return codec.Audio{}, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return codec.Audio{}, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(errorBody)))
	}

	ready := time.AfterFunc(f.cfg.ReadyWait, cancel)
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if !ready.Stop() {
		return codec.Audio{}, errNotReady
	}
	if err != nil {
		return codec.Audio{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxBodyBytes {
		return codec.Audio{}, fmt.Errorf("response exceeds %d bytes", f.cfg.MaxBodyBytes)
	}

	audio, err := format.Decode(data)
	if err != nil {
		return codec.Audio{}, fmt.Errorf("failed to decode audio: %w", err)
	}
	if audio.Frames() == 0 {
		return codec.Audio{}, errors.New("response contained no audio")
	}
	return audio, nil
}

func (f *Fetcher) report(ctx context.Context, status, url, errMsg string) {
	if f.reporter == nil {
		return
	}
	if err := f.reporter.ReportStreamingStatus(ctx, status, url, errMsg); err != nil {
		f.logger.Warn("Failed to report streaming status",
			zap.String("status", status),
			zap.String("url", url),
			zap.Error(err))
	}
}

func candidateFormat(candidate string, hint codec.Format) codec.Format {
	if strings.Contains(candidate, ".wav") {
		return codec.Format{Container: "wav"}
	}
	return hint
}

func acceptHeader(format codec.Format) string {
	if format.IsRaw() {
		return "audio/pcm"
	}
	return "audio/wav"
}
