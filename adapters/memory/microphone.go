package memory

import (
	"errors"
	"sync"

	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

// Microphone is an in-memory MicrophoneProvider. Samples pushed with Write
// land in the ring buffer of the currently open device, which makes it usable
// headless and in tests.
type Microphone struct {
	mu      sync.RWMutex
	devices []repositories.MicrophoneInfo
	busy    map[string]bool
	active  *RingBuffer
	opened  []string
}

// NewMicrophone creates a provider exposing the given devices
func NewMicrophone(devices ...repositories.MicrophoneInfo) *Microphone {
	return &Microphone{
		devices: devices,
		busy:    make(map[string]bool),
	}
}

// SetDevices replaces the device list, simulating hot-plug
func (m *Microphone) SetDevices(devices ...repositories.MicrophoneInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = devices
}

// SetBusy makes Open fail for the device
func (m *Microphone) SetBusy(deviceID string, busy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy[deviceID] = busy
}

// Devices implements repositories.MicrophoneProvider
func (m *Microphone) Devices() ([]repositories.MicrophoneInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]repositories.MicrophoneInfo, len(m.devices))
	copy(out, m.devices)
	return out, nil
}

// Open implements repositories.MicrophoneProvider
func (m *Microphone) Open(deviceID string, rate int, lengthSec int) (repositories.CaptureBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for _, dev := range m.devices {
		if dev.ID == deviceID {
			found = true
			break
		}
	}
	if !found {
		return nil, errors.New("device not found")
	}
	if m.busy[deviceID] {
		return nil, errors.New("device busy")
	}

	m.active = NewRingBuffer(deviceID, rate, rate*lengthSec)
	m.opened = append(m.opened, deviceID)
	return m.active, nil
}

// Active returns the ring buffer of the open device, nil when none
func (m *Microphone) Active() *RingBuffer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == nil || m.active.Closed() {
		return nil
	}
	return m.active
}

// Opened lists the device IDs passed to successful Open calls, in order
func (m *Microphone) Opened() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.opened))
	copy(out, m.opened)
	return out
}

// Write pushes samples into the open device. It returns false when no device is open.
func (m *Microphone) Write(samples []float32) bool {
	active := m.Active()
	if active == nil {
		return false
	}
	active.Write(samples)
	return true
}

// RingBuffer is a circular sample buffer with a write cursor
type RingBuffer struct {
	mu       sync.RWMutex
	deviceID string
	rate     int
	data     []float32
	pos      int
	closed   bool
}

// NewRingBuffer creates a ring of length samples
func NewRingBuffer(deviceID string, rate, length int) *RingBuffer {
	return &RingBuffer{deviceID: deviceID, rate: rate, data: make([]float32, length)}
}

// Rate returns the sample rate the buffer was opened with
func (r *RingBuffer) Rate() int {
	return r.rate
}

// Write copies samples in at the cursor, wrapping at the end
func (r *RingBuffer) Write(samples []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.data) == 0 {
		return
	}
	for _, s := range samples {
		r.data[r.pos] = s
		r.pos = (r.pos + 1) % len(r.data)
	}
}

// SetPosition moves the write cursor without writing
func (r *RingBuffer) SetPosition(pos int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.data) > 0 {
		r.pos = ((pos % len(r.data)) + len(r.data)) % len(r.data)
	}
}

// Len implements repositories.CaptureBuffer
func (r *RingBuffer) Len() int {
	return len(r.data)
}

// Position implements repositories.CaptureBuffer
func (r *RingBuffer) Position() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pos
}

// ReadAt implements repositories.CaptureBuffer
func (r *RingBuffer) ReadAt(dst []float32, offset int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if offset < 0 || offset >= len(r.data) {
		return 0
	}
	return copy(dst, r.data[offset:])
}

// Close implements repositories.CaptureBuffer
func (r *RingBuffer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close was called
func (r *RingBuffer) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}
