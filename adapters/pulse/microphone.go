// Package pulse implements the device ports on a PulseAudio server.
package pulse

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/codec"
)

const (
	applicationName = "arunika"
	iconName        = "audio-input-microphone"

	// pulse resamples in the server; these bound what we ask it for
	minRate = 8000
	maxRate = 48000

	fragmentDuration = 20 // ms
)

// Microphone enumerates and opens PulseAudio sources
type Microphone struct{}

// NewMicrophone creates a pulse backed MicrophoneProvider
func NewMicrophone() *Microphone {
	return &Microphone{}
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(applicationName),
		pulse.ClientApplicationIconName(iconName),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// Devices implements repositories.MicrophoneProvider. Monitor sources, muted
// sources and sources whose active port is unplugged are left out.
func (m *Microphone) Devices() ([]repositories.MicrophoneInfo, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultID := ""
	if source, err := client.DefaultSource(); err == nil {
		defaultID = source.ID()
	}

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]repositories.MicrophoneInfo, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if !sourceAvailable(source) || source.Mute {
			continue
		}
		if strings.HasSuffix(source.SourceName, ".monitor") {
			continue
		}
		name := source.Device
		if name == "" {
			name = source.SourceName
		}
		devices = append(devices, repositories.MicrophoneInfo{
			ID:      source.SourceName,
			Name:    name,
			Default: source.SourceName == defaultID,
			MinRate: minRate,
			MaxRate: maxRate,
		})
	}
	return devices, nil
}

// Open implements repositories.MicrophoneProvider
func (m *Microphone) Open(deviceID string, rate int, lengthSec int) (repositories.CaptureBuffer, error) {
	if rate <= 0 || lengthSec <= 0 {
		return nil, fmt.Errorf("invalid capture format: rate=%d length=%ds", rate, lengthSec)
	}

	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(deviceID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", deviceID, err)
	}

	ring := newRing(rate * lengthSec)
	ring.client = client

	writer := pulse.NewWriter(writerFunc(ring.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(rate),
		pulse.RecordBufferFragmentSize(uint32(rate*2*fragmentDuration/1000)),
		pulse.RecordMediaName("arunika voice capture"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	ring.stream = stream
	stream.Start()
	return ring, nil
}

// ring is the circular capture buffer a record stream writes into
type ring struct {
	mu      sync.RWMutex
	data    []float32
	pos     int
	pending []byte
	closed  bool

	client *pulse.Client
	stream *pulse.RecordStream
}

func newRing(length int) *ring {
	return &ring{data: make([]float32, length)}
}

// onPCM receives little endian int16 frames from pulse. An odd trailing byte
// is kept until the next callback.
func (r *ring) onPCM(buffer []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, io.EOF
	}
	if len(r.data) == 0 {
		return len(buffer), nil
	}

	frames := buffer
	if len(r.pending) > 0 {
		frames = append(r.pending, buffer...)
		r.pending = nil
	}
	for len(frames) >= 2 {
		v := int16(binary.LittleEndian.Uint16(frames))
		r.data[r.pos] = codec.PCM16ToFloat(v)
		r.pos = (r.pos + 1) % len(r.data)
		frames = frames[2:]
	}
	if len(frames) == 1 {
		r.pending = []byte{frames[0]}
	}
	return len(buffer), nil
}

// Len implements repositories.CaptureBuffer
func (r *ring) Len() int {
	return len(r.data)
}

// Position implements repositories.CaptureBuffer
func (r *ring) Position() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pos
}

// ReadAt implements repositories.CaptureBuffer
func (r *ring) ReadAt(dst []float32, offset int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if offset < 0 || offset >= len(r.data) {
		return 0
	}
	return copy(dst, r.data[offset:])
}

// Close implements repositories.CaptureBuffer
func (r *ring) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if r.stream != nil {
		r.stream.Stop()
		r.stream.Close()
	}
	if r.client != nil {
		r.client.Close()
	}
	return nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// sourceAvailable reports whether the active port of a source is usable
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// unknown=0, no=1, yes=2
		return port.Available != 1
	}
	return true
}
