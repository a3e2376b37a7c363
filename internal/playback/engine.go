// Package playback plays decoded responses and reports normalized progress
// to animation and session consumers.
package playback

import (
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/codec"
)

// Observer receives playback notifications. Calls are fire and forget.
type Observer interface {
	OnPlaybackStarted()
	OnPlaybackProgress(progress float64)
	OnPlaybackCompleted()
}

type session struct {
	audio    codec.Audio
	duration time.Duration
	played   time.Duration
	progress float64
}

// Engine holds at most one active clip. Progress advances on Tick rather than
// on speaker callbacks so the session completes even when the speaker fails.
// It is driven from a single scheduling goroutine.
type Engine struct {
	speaker   repositories.Speaker
	logger    *zap.Logger
	active    *session
	observers []Observer
}

// NewEngine creates a playback engine writing to speaker
func NewEngine(speaker repositories.Speaker, logger *zap.Logger) *Engine {
	return &Engine{speaker: speaker, logger: logger}
}

// Subscribe registers an observer
func (e *Engine) Subscribe(o Observer) {
	e.observers = append(e.observers, o)
}

// Active reports whether a clip is playing
func (e *Engine) Active() bool {
	return e.active != nil
}

// Progress returns the normalized progress of the active clip, 0 when idle
func (e *Engine) Progress() float64 {
	if e.active == nil {
		return 0
	}
	return e.active.progress
}

// Play starts audio, superseding any active clip. The old clip's completion
// is reported before the new clip's start.
func (e *Engine) Play(audio codec.Audio) {
	if e.active != nil {
		e.logger.Debug("Superseding active playback",
			zap.Float64("progress", e.active.progress))
		e.stopActive()
	}

	if err := e.speaker.Play(audio.Samples, audio.SampleRate, audio.Channels); err != nil {
		e.logger.Error("Speaker failed to start playback", zap.Error(err))
	}

	e.active = &session{audio: audio, duration: audio.Duration()}
	e.logger.Info("Playback started",
		zap.Duration("duration", e.active.duration),
		zap.Int("sampleRate", audio.SampleRate),
		zap.Int("channels", audio.Channels))

	for _, o := range e.observers {
		o.OnPlaybackStarted()
	}
}

// PlayWAV decodes and plays a WAV buffer. Undecodable data is replaced by
// a short tone so the conversation still sees a start/complete pair; the
// return value reports whether that happened.
func (e *Engine) PlayWAV(data []byte) bool {
	return e.PlayEncoded(data, codec.Format{Container: "wav"})
}

// PlayEncoded decodes data in the given format and plays it, substituting
// the fallback tone on failure
func (e *Engine) PlayEncoded(data []byte, format codec.Format) bool {
	audio, err := format.Decode(data)
	if err != nil {
		e.logger.Warn("Failed to decode response audio, playing fallback tone",
			zap.Int("bytes", len(data)),
			zap.String("container", format.Container),
			zap.Error(err))
		e.Play(codec.FallbackTone())
		return true
	}
	e.Play(audio)
	return false
}

// Tick advances the active clip by elapsed and reports whether it finished
// during this tick. Completion is reported exactly once.
func (e *Engine) Tick(elapsed time.Duration) bool {
	s := e.active
	if s == nil {
		return false
	}

	s.played += elapsed
	if s.duration <= 0 {
		s.progress = 1
	} else {
		s.progress = float64(s.played) / float64(s.duration)
		if s.progress > 1 {
			s.progress = 1
		}
	}

	for _, o := range e.observers {
		o.OnPlaybackProgress(s.progress)
	}

	if s.progress < 1 {
		return false
	}

	e.active = nil
	e.logger.Info("Playback completed", zap.Duration("duration", s.duration))
	for _, o := range e.observers {
		o.OnPlaybackCompleted()
	}
	return true
}

// Stop ends the active clip immediately and reports completion. Stopping an
// idle engine does nothing.
func (e *Engine) Stop() {
	if e.active == nil {
		return
	}
	e.logger.Info("Playback stopped", zap.Float64("progress", e.active.progress))
	e.stopActive()
}

func (e *Engine) stopActive() {
	e.active = nil
	if err := e.speaker.Stop(); err != nil {
		e.logger.Warn("Speaker failed to stop", zap.Error(err))
	}
	for _, o := range e.observers {
		o.OnPlaybackCompleted()
	}
}
