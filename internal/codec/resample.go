package codec

import "math"

// Resample converts mono samples from srcRate to dstRate by linear
// interpolation. It is not band limited: fine for speech, audible aliasing on
// music. The output holds ceil(len*dstRate/srcRate) samples.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return samples
	}
	if len(samples) == 0 {
		return []float32{}
	}

	outLen := int(math.Ceil(float64(len(samples)) * float64(dstRate) / float64(srcRate)))
	out := make([]float32, outLen)
	step := float64(srcRate) / float64(dstRate)
	last := len(samples) - 1

	for i := range out {
		p := float64(i) * step
		lo := int(math.Floor(p))
		if lo > last {
			lo = last
		}
		hi := int(math.Ceil(p))
		if hi > last {
			hi = last
		}
		frac := float32(p - math.Floor(p))
		out[i] = samples[lo] + (samples[hi]-samples[lo])*frac
	}
	return out
}

// Downmix averages interleaved channels into mono
func Downmix(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += samples[f*channels+c]
		}
		out[f] = sum / float32(channels)
	}
	return out
}
