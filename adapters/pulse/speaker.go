package pulse

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"

	"github.com/satriahrh/arunika/voiceclient/internal/codec"
)

var errClosed = errors.New("pulse speaker closed")

// Speaker plays decoded audio on the default PulseAudio sink. Only one
// stream is live at a time; Play replaces whatever is playing.
type Speaker struct {
	mu     sync.Mutex
	client *pulse.Client
	stream *pulse.PlaybackStream
	closed bool
}

// NewSpeaker connects to the pulse server
func NewSpeaker() (*Speaker, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	return &Speaker{client: client}, nil
}

// Play implements repositories.Speaker. It returns once the stream started;
// the playback engine tracks completion from the clip duration.
func (s *Speaker) Play(samples []float32, rate int, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.stopLocked()

	layout := pulse.PlaybackMono
	if channels == 2 {
		layout = pulse.PlaybackStereo
	} else if channels > 2 {
		samples = codec.Downmix(samples, channels)
	}

	stream, err := s.client.NewPlayback(
		pulse.Int16Reader(newSampleReader(samples).read),
		layout,
		pulse.PlaybackSampleRate(rate),
		pulse.PlaybackLatency(0.05),
		pulse.PlaybackMediaName("arunika response"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	s.stream = stream
	stream.Start()
	return nil
}

// Stop implements repositories.Speaker
func (s *Speaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *Speaker) stopLocked() {
	if s.stream == nil {
		return
	}
	s.stream.Stop()
	s.stream.Close()
	s.stream = nil
}

// Close stops playback and disconnects from the server
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopLocked()
	s.client.Close()
	return nil
}

// sampleReader feeds float samples to pulse as int16
type sampleReader struct {
	samples []float32
	pos     int
}

func newSampleReader(samples []float32) *sampleReader {
	return &sampleReader{samples: samples}
}

func (r *sampleReader) read(buf []int16) (int, error) {
	if r.pos >= len(r.samples) {
		return 0, pulse.EndOfData
	}
	n := 0
	for n < len(buf) && r.pos < len(r.samples) {
		buf[n] = codec.FloatToPCM16(r.samples[r.pos])
		n++
		r.pos++
	}
	if r.pos >= len(r.samples) {
		return n, pulse.EndOfData
	}
	return n, nil
}
