// Package capture records a user turn from a microphone ring buffer and
// decides when the user has stopped talking.
package capture

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

var (
	// ErrNoDevice is returned when no capture device is available
	ErrNoDevice = errors.New("no capture device available")
	// ErrDeviceBusy is returned when the device cannot be opened or a
	// recording is already running
	ErrDeviceBusy = errors.New("capture device busy")
	// ErrNotRecording is returned by Stop when nothing is being recorded
	ErrNotRecording = errors.New("not recording")
)

// State is the capture engine state
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopping  State = "stopping"
)

// Config holds the capture tuning knobs
type Config struct {
	DeviceID         string
	FallbackDeviceID string
	SampleRate       int
	// MaxDurationSec sizes the ring buffer
	MaxDurationSec int
	VoiceThreshold float64
	SilenceTimeout time.Duration
}

// Recording is the audio handed off when capture stops
type Recording struct {
	Samples    []float32
	SampleRate int
	DeviceID   string
}

// Duration returns the length of the recording
func (r Recording) Duration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(r.Samples)) / float64(r.SampleRate) * float64(time.Second))
}

// Empty reports whether nothing was captured
func (r Recording) Empty() bool {
	return len(r.Samples) == 0
}

// PollResult is what one Poll observed
type PollResult struct {
	// Level is the RMS of the new samples, zero when none arrived
	Level   float64
	Samples int
	// Stopped is set when silence ended the recording during this poll
	Stopped *Recording
}

// LevelObserver receives the input level after every poll that read samples
type LevelObserver interface {
	OnAudioLevel(level float64)
}

type session struct {
	deviceID string
	rate     int
	buf      repositories.CaptureBuffer
	lastRead int
	samples  []float32
	silence  time.Duration
}

// Engine owns the microphone while a turn is being recorded. It is driven from
// a single scheduling goroutine and is not safe for concurrent use.
type Engine struct {
	cfg       Config
	provider  repositories.MicrophoneProvider
	logger    *zap.Logger
	state     State
	session   *session
	observers []LevelObserver
}

// NewEngine creates a capture engine
func NewEngine(cfg Config, provider repositories.MicrophoneProvider, logger *zap.Logger) *Engine {
	if cfg.MaxDurationSec <= 0 {
		cfg.MaxDurationSec = 60
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		state:    StateIdle,
	}
}

// Subscribe registers a level observer
func (e *Engine) Subscribe(o LevelObserver) {
	e.observers = append(e.observers, o)
}

// State returns the current engine state
func (e *Engine) State() State {
	return e.state
}

// Recording reports whether a turn is being captured
func (e *Engine) Recording() bool {
	return e.state == StateRecording
}

// Start opens a device and begins a new recording. An empty deviceID or
// non-positive rate uses the configured values.
func (e *Engine) Start(deviceID string, rate int) error {
	if e.state != StateIdle {
		return fmt.Errorf("%w: recording already in progress", ErrDeviceBusy)
	}
	if deviceID == "" {
		deviceID = e.cfg.DeviceID
	}
	if rate <= 0 {
		rate = e.cfg.SampleRate
	}

	devices, err := e.provider.Devices()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
	sel, ok := selectDevice(devices, deviceID, e.cfg.FallbackDeviceID)
	if !ok {
		return ErrNoDevice
	}
	if sel.fallback {
		e.logger.Warn("Requested capture device not found, using fallback",
			zap.String("requested", deviceID),
			zap.String("deviceID", sel.device.ID))
	}

	buf, usedRate, err := e.open(sel.device, rate)
	if err != nil {
		e.logger.Warn("Failed to open capture device, retrying with fallback",
			zap.String("deviceID", sel.device.ID),
			zap.Error(err))

		retry, ok := selectDevice(without(devices, sel.device.ID), e.cfg.FallbackDeviceID, "")
		if !ok {
			return fmt.Errorf("%w: %s: %v", ErrDeviceBusy, sel.device.ID, err)
		}
		sel = retry
		buf, usedRate, err = e.open(sel.device, rate)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrDeviceBusy, sel.device.ID, err)
		}
	}

	e.session = &session{
		deviceID: sel.device.ID,
		rate:     usedRate,
		buf:      buf,
		lastRead: buf.Position(),
	}
	e.state = StateRecording

	e.logger.Info("Recording started",
		zap.String("deviceID", sel.device.ID),
		zap.Int("sampleRate", usedRate),
		zap.Int("bufferSamples", buf.Len()))
	return nil
}

func (e *Engine) open(dev repositories.MicrophoneInfo, rate int) (repositories.CaptureBuffer, int, error) {
	clamped := clampRate(dev, rate)
	if clamped != rate {
		e.logger.Info("Adjusted capture sample rate to device range",
			zap.String("deviceID", dev.ID),
			zap.Int("requested", rate),
			zap.Int("sampleRate", clamped),
			zap.Int("minRate", dev.MinRate),
			zap.Int("maxRate", dev.MaxRate))
	}
	buf, err := e.provider.Open(dev.ID, clamped, e.cfg.MaxDurationSec)
	if err != nil {
		return nil, 0, err
	}
	if buf.Len() <= 0 {
		buf.Close()
		return nil, 0, errors.New("device returned an empty buffer")
	}
	return buf, clamped, nil
}

// Poll reads whatever the device wrote since the previous poll and updates
// the silence timer. elapsed is the time since the previous tick. When the
// silence timer reaches the timeout the engine stops itself and the
// recording is returned in PollResult.Stopped.
func (e *Engine) Poll(elapsed time.Duration) (PollResult, error) {
	if e.state != StateRecording {
		return PollResult{}, nil
	}

	s := e.session
	delta := e.read()
	result := PollResult{Samples: len(delta)}
	if len(delta) == 0 {
		// A device that delivers nothing is as quiet as one below threshold.
		s.silence += elapsed
	} else {
		result.Level = RMS(delta)
		if result.Level < e.cfg.VoiceThreshold {
			s.silence += elapsed
		} else {
			s.silence = 0
		}
		for _, o := range e.observers {
			o.OnAudioLevel(result.Level)
		}
	}

	if e.cfg.SilenceTimeout > 0 && s.silence >= e.cfg.SilenceTimeout {
		e.logger.Info("Silence timeout reached, stopping recording",
			zap.Duration("silence", s.silence),
			zap.Duration("timeout", e.cfg.SilenceTimeout))
		rec, err := e.Stop()
		if err != nil {
			return result, err
		}
		result.Stopped = &rec
	}
	return result, nil
}

// read appends the samples between the last read cursor and the hardware
// write cursor to the session and returns them
func (e *Engine) read() []float32 {
	s := e.session
	current := s.buf.Position()
	if current == s.lastRead {
		return nil
	}
	delta := extract(s.buf, s.lastRead, current)
	s.samples = append(s.samples, delta...)
	s.lastRead = current
	return delta
}

// SilenceElapsed returns the current run of continuous silence
func (e *Engine) SilenceElapsed() time.Duration {
	if e.session == nil {
		return 0
	}
	return e.session.silence
}

// Stop flushes the unread tail, closes the device and hands the recording
// over. The samples are handed over exactly once. An empty recording is not
// an error.
func (e *Engine) Stop() (Recording, error) {
	if e.state != StateRecording || e.session == nil {
		return Recording{}, ErrNotRecording
	}
	e.state = StateStopping

	s := e.session
	e.read()

	rec := Recording{
		Samples:    s.samples,
		SampleRate: s.rate,
		DeviceID:   s.deviceID,
	}
	s.samples = nil

	if err := s.buf.Close(); err != nil {
		e.logger.Warn("Failed to close capture device",
			zap.String("deviceID", s.deviceID),
			zap.Error(err))
	}
	e.session = nil
	e.state = StateIdle

	if rec.Empty() {
		e.logger.Warn("Recording stopped with no samples captured",
			zap.String("deviceID", rec.DeviceID))
	} else {
		e.logger.Info("Recording stopped",
			zap.String("deviceID", rec.DeviceID),
			zap.Int("samples", len(rec.Samples)),
			zap.Duration("duration", rec.Duration()))
	}
	return rec, nil
}
