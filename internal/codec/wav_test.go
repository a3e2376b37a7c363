package codec

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeWAVHeader(t *testing.T) {
	data := EncodeWAV([]float32{0, 0.5, -0.5, 1}, 16000, 1)

	require.Len(t, data, CanonicalHeaderSize+8)

	var header WAVHeader
	require.NoError(t, binary.Read(bytes.NewReader(data), binary.LittleEndian, &header))
	require.Equal(t, "RIFF", string(header.ChunkID[:]))
	require.Equal(t, "WAVE", string(header.Format[:]))
	require.Equal(t, "data", string(header.Subchunk2ID[:]))
	require.Equal(t, uint16(1), header.AudioFormat)
	require.Equal(t, uint16(16), header.BitsPerSample)
	require.Equal(t, uint32(16000), header.SampleRate)
	require.Equal(t, uint32(32000), header.ByteRate)
	require.Equal(t, uint32(8), header.Subchunk2Size)
	require.Equal(t, uint32(36+8), header.ChunkSize)
}

func TestEncodeWAVClamps(t *testing.T) {
	data := EncodeWAV([]float32{2, -3}, 8000, 1)

	hi := int16(binary.LittleEndian.Uint16(data[44:46]))
	lo := int16(binary.LittleEndian.Uint16(data[46:48]))
	require.Equal(t, int16(32767), hi)
	require.Equal(t, int16(-32767), lo)
}

func TestRoundTrip(t *testing.T) {
	samples := make([]float32, 1000)
	for i := range samples {
		samples[i] = float32(math.Sin(float64(i)*0.05)) * 0.9
	}
	samples[0] = 1
	samples[1] = -1
	samples[2] = 0

	audio, err := DecodeWAV(EncodeWAV(samples, 22050, 1))
	require.NoError(t, err)
	require.Equal(t, 22050, audio.SampleRate)
	require.Equal(t, 1, audio.Channels)
	require.Len(t, audio.Samples, len(samples))

	for i, s := range samples {
		diff := math.Abs(float64(audio.Samples[i] - s))
		require.LessOrEqualf(t, diff, 1.0/32767, "sample %d: want %f got %f", i, s, audio.Samples[i])
	}
}

func TestRoundTripStereo(t *testing.T) {
	samples := []float32{0.1, -0.1, 0.2, -0.2}

	audio, err := DecodeWAV(EncodeWAV(samples, 44100, 2))
	require.NoError(t, err)
	require.Equal(t, 2, audio.Channels)
	require.Equal(t, 2, audio.Frames())
}

func TestRoundTripEmpty(t *testing.T) {
	audio, err := DecodeWAV(EncodeWAV(nil, 16000, 1))
	require.NoError(t, err)
	require.Empty(t, audio.Samples)
	require.Zero(t, audio.Duration())
}

func TestDecodeTooShort(t *testing.T) {
	_, err := DecodeWAV([]byte("RIFF"))
	require.ErrorIs(t, err, ErrTooShort)

	_, err = DecodeWAV(nil)
	require.ErrorIs(t, err, ErrTooShort)
}

func TestDecodeAllZeroHeaderSizedBuffer(t *testing.T) {
	_, err := DecodeWAV(make([]byte, 44))
	require.ErrorIs(t, err, ErrTooShort)
}

func TestDecodeNoDataChunk(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")
	writeFmt(&buf, 1, 16000, 16)
	writeChunk(&buf, "LIST", make([]byte, 20))

	_, err := DecodeWAV(buf.Bytes())
	require.ErrorIs(t, err, ErrNoDataChunk)
}

func TestDecodeUnsupportedDepth(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")
	writeFmt(&buf, 1, 16000, 24)
	writeChunk(&buf, "data", make([]byte, 6))

	_, err := DecodeWAV(buf.Bytes())
	require.ErrorIs(t, err, ErrUnsupportedDepth)
}

func TestDecodeExtraChunksBeforeData(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")
	writeChunk(&buf, "LIST", []byte("odd")) // odd sized, padded
	writeFmt(&buf, 1, 8000, 16)
	writeChunk(&buf, "fact", make([]byte, 4))
	pcm := make([]byte, 4)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(int16(16384)))
	neg := int16(-16384)
	binary.LittleEndian.PutUint16(pcm[2:], uint16(neg))
	writeChunk(&buf, "data", pcm)

	audio, err := DecodeWAV(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 8000, audio.SampleRate)
	require.Len(t, audio.Samples, 2)
	require.InDelta(t, 0.5, audio.Samples[0], 0.001)
	require.InDelta(t, -0.5, audio.Samples[1], 0.001)
}

func TestDecode8Bit(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")
	writeFmt(&buf, 1, 8000, 8)
	writeChunk(&buf, "data", []byte{0, 128, 255, 64})

	audio, err := DecodeWAV(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, audio.Samples, 4)
	require.Equal(t, float32(-1), audio.Samples[0])
	require.Equal(t, float32(0), audio.Samples[1])
	require.InDelta(t, 0.992, audio.Samples[2], 0.001)
	require.Equal(t, float32(-0.5), audio.Samples[3])
}

func TestDecodeInconsistentPayload(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(0))
	buf.WriteString("WAVE")
	writeFmt(&buf, 2, 16000, 16)
	writeChunk(&buf, "data", make([]byte, 6)) // 1.5 stereo frames

	_, err := DecodeWAV(buf.Bytes())
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeTruncatedDoesNotPanic(t *testing.T) {
	full := EncodeWAV(make([]float32, 100), 16000, 1)
	for n := 0; n < len(full); n++ {
		require.NotPanics(t, func() {
			_, _ = DecodeWAV(full[:n])
		})
	}
}

func TestDecodeStreamingDataSize(t *testing.T) {
	data := EncodeWAV([]float32{0.25, 0.5}, 16000, 1)
	binary.LittleEndian.PutUint32(data[40:44], streamingDataSize)

	audio, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Len(t, audio.Samples, 2)
}

func TestDecodeNotPCM(t *testing.T) {
	data := EncodeWAV([]float32{0.25, 0.5}, 16000, 1)
	binary.LittleEndian.PutUint16(data[20:22], 3) // IEEE float

	_, err := DecodeWAV(data)
	require.ErrorIs(t, err, ErrMalformed)
}

func writeChunk(buf *bytes.Buffer, id string, body []byte) {
	buf.WriteString(id)
	binary.Write(buf, binary.LittleEndian, uint32(len(body)))
	buf.Write(body)
	if len(body)%2 == 1 {
		buf.WriteByte(0)
	}
}

func writeFmt(buf *bytes.Buffer, channels uint16, rate uint32, bits uint16) {
	body := new(bytes.Buffer)
	blockAlign := channels * bits / 8
	binary.Write(body, binary.LittleEndian, uint16(1))
	binary.Write(body, binary.LittleEndian, channels)
	binary.Write(body, binary.LittleEndian, rate)
	binary.Write(body, binary.LittleEndian, rate*uint32(blockAlign))
	binary.Write(body, binary.LittleEndian, blockAlign)
	binary.Write(body, binary.LittleEndian, bits)
	writeChunk(buf, "fmt ", body.Bytes())
}
