package codec

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// Format describes how a fetched audio payload is encoded
type Format struct {
	Container  string // "wav" or "pcm"
	SampleRate int    // only meaningful for raw pcm
	Channels   int
}

// IsRaw reports whether the payload has no container header
func (f Format) IsRaw() bool {
	return f.Container == "pcm"
}

// ParseFormatHint understands the output format names used by speech
// synthesis endpoints: "wav", "pcm_16000", "pcm_24000" and so on.
// Anything unrecognized is treated as WAV.
func ParseFormatHint(hint string) Format {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if rate, ok := strings.CutPrefix(hint, "pcm_"); ok {
		if n, err := strconv.Atoi(rate); err == nil && n > 0 {
			return Format{Container: "pcm", SampleRate: n, Channels: 1}
		}
	}
	if hint == "pcm" {
		return Format{Container: "pcm", SampleRate: 16000, Channels: 1}
	}
	return Format{Container: "wav"}
}

// Decode decodes data according to the format
func (f Format) Decode(data []byte) (Audio, error) {
	if f.IsRaw() {
		return DecodePCM16(data, f.SampleRate, f.Channels)
	}
	return DecodeWAV(data)
}

// DecodePCM16 decodes headerless little-endian signed 16-bit samples
func DecodePCM16(data []byte, sampleRate, channels int) (Audio, error) {
	if channels <= 0 {
		channels = 1
	}
	if sampleRate <= 0 {
		return Audio{}, fmt.Errorf("%w: sample rate %d", ErrMalformed, sampleRate)
	}
	frameSize := 2 * channels
	if len(data) == 0 || len(data)%frameSize != 0 {
		return Audio{}, fmt.Errorf("%w: %d bytes of pcm is not a whole number of frames", ErrMalformed, len(data))
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = PCM16ToFloat(int16(binary.LittleEndian.Uint16(data[i*2:])))
	}
	return Audio{Samples: samples, SampleRate: sampleRate, Channels: channels}, nil
}
