package codec

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResampleIdentity(t *testing.T) {
	samples := []float32{0.1, 0.2, -0.3, 0.4}

	out := Resample(samples, 16000, 16000)
	require.Equal(t, samples, out)
}

func TestResampleLength(t *testing.T) {
	for _, n := range []int{1, 7, 160, 16000, 16001} {
		samples := make([]float32, n)
		out := Resample(samples, 16000, 44100)
		want := int(math.Ceil(float64(n) * 44100 / 16000))
		require.Lenf(t, out, want, "input length %d", n)
	}
}

func TestResampleDown(t *testing.T) {
	samples := make([]float32, 48000)
	out := Resample(samples, 48000, 16000)
	require.Len(t, out, 16000)
}

func TestResampleInterpolates(t *testing.T) {
	out := Resample([]float32{0, 1}, 1, 2)

	require.Len(t, out, 4)
	require.Equal(t, float32(0), out[0])
	require.InDelta(t, 0.5, out[1], 1e-6)
	require.Equal(t, float32(1), out[2])
	// Past the end the last sample is held.
	require.Equal(t, float32(1), out[3])
}

func TestResampleEmpty(t *testing.T) {
	require.Empty(t, Resample(nil, 16000, 44100))
}

func TestDownmix(t *testing.T) {
	out := Downmix([]float32{1, 0, 0.5, 0.5}, 2)
	require.Equal(t, []float32{0.5, 0.5}, out)
}

func TestToneIsDeterministic(t *testing.T) {
	a := Tone(440, 100*time.Millisecond, 16000)
	b := Tone(440, 100*time.Millisecond, 16000)

	require.Len(t, a, 1600)
	require.Equal(t, a, b)
	require.Equal(t, float32(0), a[0])
	for _, s := range a {
		require.LessOrEqual(t, math.Abs(float64(s)), fallbackToneGain)
	}
}

func TestFallbackTone(t *testing.T) {
	audio := FallbackTone()
	require.Equal(t, FallbackToneDuration, audio.Duration())
}

func TestDecodePCM16(t *testing.T) {
	audio, err := DecodePCM16([]byte{0xff, 0x7f, 0x01, 0x80}, 24000, 1)
	require.NoError(t, err)
	require.Equal(t, []float32{1, -1}, audio.Samples)
	require.Equal(t, 24000, audio.SampleRate)

	_, err = DecodePCM16([]byte{0x01}, 24000, 1)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestParseFormatHint(t *testing.T) {
	tests := []struct {
		hint string
		want Format
	}{
		{"wav", Format{Container: "wav"}},
		{"", Format{Container: "wav"}},
		{"pcm_24000", Format{Container: "pcm", SampleRate: 24000, Channels: 1}},
		{"PCM_16000", Format{Container: "pcm", SampleRate: 16000, Channels: 1}},
		{"pcm_bogus", Format{Container: "wav"}},
		{"mp3_44100_128", Format{Container: "wav"}},
	}
	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			require.Equal(t, tt.want, ParseFormatHint(tt.hint))
		})
	}
}
