package codec

import (
	"math"
	"time"
)

const (
	// FallbackToneFrequency is the pitch of the substitute tone in Hz
	FallbackToneFrequency = 440.0
	// FallbackToneDuration is the length of the substitute tone
	FallbackToneDuration = 500 * time.Millisecond
	// FallbackToneRate is the sample rate of the substitute tone
	FallbackToneRate = 16000
	fallbackToneGain = 0.25
)

// Tone synthesizes a deterministic mono sine wave
func Tone(frequency float64, duration time.Duration, rate int) []float32 {
	n := int(duration.Seconds() * float64(rate))
	if n <= 0 {
		return []float32{}
	}
	out := make([]float32, n)
	for i := range out {
		t := float64(i) / float64(rate)
		out[i] = float32(fallbackToneGain * math.Sin(2*math.Pi*frequency*t))
	}
	return out
}

// FallbackTone is the audio substituted when a response cannot be decoded
func FallbackTone() Audio {
	return Audio{
		Samples:    Tone(FallbackToneFrequency, FallbackToneDuration, FallbackToneRate),
		SampleRate: FallbackToneRate,
		Channels:   1,
	}
}

// Silence returns duration worth of zero samples
func Silence(duration time.Duration, rate int) []float32 {
	n := int(duration.Seconds() * float64(rate))
	if n < 0 {
		n = 0
	}
	return make([]float32, n)
}
