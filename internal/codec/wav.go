package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// CanonicalHeaderSize is the size of the RIFF/WAVE header written by EncodeWAV
const CanonicalHeaderSize = 44

// streamingDataSize is the placeholder size written by encoders that do not
// know the final length up front.
const streamingDataSize = 0xFFFFFFFF

var (
	// ErrTooShort is returned when the buffer cannot hold a header and its data chunk
	ErrTooShort = errors.New("wav data too short")
	// ErrNoDataChunk is returned when no "data" sub-chunk is present
	ErrNoDataChunk = errors.New("wav data chunk not found")
	// ErrUnsupportedDepth is returned for bit depths other than 8 and 16
	ErrUnsupportedDepth = errors.New("unsupported wav bit depth")
	// ErrMalformed covers every other inconsistent header
	ErrMalformed = errors.New("malformed wav data")
)

// WAVHeader represents the canonical header structure of a WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

// Audio is decoded, interleaved float audio
type Audio struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames
func (a Audio) Frames() int {
	if a.Channels <= 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Duration returns the playing time of the audio
func (a Audio) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(a.Frames()) / float64(a.SampleRate) * float64(time.Second))
}

// EncodeWAV converts normalized float samples to a 16-bit PCM WAV file.
// Samples outside [-1, 1] are clamped.
func EncodeWAV(samples []float32, sampleRate int, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(channels) * uint32(bitsPerSample) / 8,
		BlockAlign:    uint16(channels) * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, CanonicalHeaderSize+len(samples)*2))
	// Writes into a bytes.Buffer cannot fail.
	_ = binary.Write(buf, binary.LittleEndian, header)

	pcm := make([]byte, 2)
	for _, s := range samples {
		binary.LittleEndian.PutUint16(pcm, uint16(FloatToPCM16(s)))
		buf.Write(pcm)
	}
	return buf.Bytes()
}

// FloatToPCM16 clamps s to [-1, 1] and scales it with round(s*32767)
func FloatToPCM16(s float32) int16 {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(math.Round(v * 32767))
}

// PCM16ToFloat is the inverse of FloatToPCM16
func PCM16ToFloat(v int16) float32 {
	return float32(v) / 32767
}

type fmtChunk struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	blockAlign    uint16
	bitsPerSample uint16
}

// DecodeWAV parses a RIFF/WAVE buffer. Chunks are located by tag, so extra
// chunks before "data" are skipped. 8-bit and 16-bit PCM are supported.
func DecodeWAV(data []byte) (Audio, error) {
	if len(data) < CanonicalHeaderSize {
		return Audio{}, fmt.Errorf("%w: need at least %d bytes, got %d", ErrTooShort, CanonicalHeaderSize, len(data))
	}

	audio, err := decodeChunks(data)
	if err != nil {
		// A header-sized buffer without a usable layout holds no audio at all.
		if len(data) <= CanonicalHeaderSize && !errors.Is(err, ErrUnsupportedDepth) {
			return Audio{}, fmt.Errorf("%w: %d bytes carry no audio payload", ErrTooShort, len(data))
		}
		return Audio{}, err
	}
	return audio, nil
}

func decodeChunks(data []byte) (Audio, error) {
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Audio{}, fmt.Errorf("%w: missing RIFF/WAVE header", ErrMalformed)
	}

	var (
		format  *fmtChunk
		payload []byte
		found   bool
	)

	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		rawSize := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		size := int(rawSize)
		body := offset + 8
		if size < 0 || body+size > len(data) {
			if id == "data" && rawSize == streamingDataSize {
				// Streaming writers leave the data size unset; take what is there.
				size = len(data) - body
			} else {
				return Audio{}, fmt.Errorf("%w: chunk %q overruns buffer", ErrMalformed, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Audio{}, fmt.Errorf("%w: fmt chunk is %d bytes", ErrMalformed, size)
			}
			f := data[body : body+size]
			format = &fmtChunk{
				audioFormat:   binary.LittleEndian.Uint16(f[0:2]),
				channels:      binary.LittleEndian.Uint16(f[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(f[4:8]),
				blockAlign:    binary.LittleEndian.Uint16(f[12:14]),
				bitsPerSample: binary.LittleEndian.Uint16(f[14:16]),
			}
		case "data":
			payload = data[body : body+size]
			found = true
		}
		if found {
			break
		}

		// Chunks are word aligned.
		offset = body + size + size%2
	}

	if !found {
		return Audio{}, ErrNoDataChunk
	}
	if format == nil {
		return Audio{}, fmt.Errorf("%w: fmt chunk missing before data", ErrMalformed)
	}
	if format.audioFormat != 1 {
		return Audio{}, fmt.Errorf("%w: audio format %d is not PCM", ErrMalformed, format.audioFormat)
	}
	if format.channels == 0 || format.sampleRate == 0 {
		return Audio{}, fmt.Errorf("%w: %d channels at %d Hz", ErrMalformed, format.channels, format.sampleRate)
	}
	if format.bitsPerSample != 8 && format.bitsPerSample != 16 {
		return Audio{}, fmt.Errorf("%w: %d bits", ErrUnsupportedDepth, format.bitsPerSample)
	}

	bytesPerSample := int(format.bitsPerSample) / 8
	frameSize := int(format.channels) * bytesPerSample
	if len(payload)%frameSize != 0 {
		return Audio{}, fmt.Errorf("%w: payload of %d bytes is not a multiple of frame size %d",
			ErrMalformed, len(payload), frameSize)
	}

	samples := make([]float32, len(payload)/bytesPerSample)
	switch bytesPerSample {
	case 1:
		for i, b := range payload {
			samples[i] = float32(int(b)-128) / 128
		}
	case 2:
		for i := range samples {
			samples[i] = PCM16ToFloat(int16(binary.LittleEndian.Uint16(payload[i*2:])))
		}
	}

	return Audio{
		Samples:    samples,
		SampleRate: int(format.sampleRate),
		Channels:   int(format.channels),
	}, nil
}
