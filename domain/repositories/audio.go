package repositories

// MicrophoneInfo describes one capture device
type MicrophoneInfo struct {
	ID      string
	Name    string
	Default bool
	// MinRate and MaxRate bound the supported sample rates. Zero means any rate.
	MinRate int
	MaxRate int
}

// MicrophoneProvider enumerates and opens capture devices
type MicrophoneProvider interface {
	Devices() ([]MicrophoneInfo, error)
	// Open starts recording into a circular buffer of rate*lengthSec mono samples
	Open(deviceID string, rate int, lengthSec int) (CaptureBuffer, error)
}

// CaptureBuffer is the circular buffer a device writes into continuously
type CaptureBuffer interface {
	// Len is the buffer length in samples
	Len() int
	// Position is the current hardware write cursor in [0, Len)
	Position() int
	// ReadAt copies contiguous samples starting at offset into dst and returns
	// the count copied. It never reads past the end of the buffer.
	ReadAt(dst []float32, offset int) int
	Close() error
}

// Speaker plays decoded audio
type Speaker interface {
	Play(samples []float32, rate int, channels int) error
	Stop() error
}
