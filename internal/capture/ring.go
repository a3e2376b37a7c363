package capture

import "math"

// ring is the read side of a circular buffer
type ring interface {
	Len() int
	ReadAt(dst []float32, offset int) int
}

type sliceRing []float32

func (s sliceRing) Len() int { return len(s) }

func (s sliceRing) ReadAt(dst []float32, offset int) int {
	if offset < 0 || offset >= len(s) {
		return 0
	}
	return copy(dst, s[offset:])
}

// Extract returns the samples written between the last read cursor and the
// current write cursor. When the writer has wrapped (current < last) the
// result is buf[last:] followed by buf[:current].
func Extract(buf []float32, last, current int) []float32 {
	return extract(sliceRing(buf), last, current)
}

func extract(r ring, last, current int) []float32 {
	n := r.Len()
	if n == 0 || last == current {
		return nil
	}
	last = wrap(last, n)
	current = wrap(current, n)
	if last == current {
		return nil
	}

	if current > last {
		out := make([]float32, current-last)
		r.ReadAt(out, last)
		return out
	}

	out := make([]float32, n-last+current)
	tail := r.ReadAt(out[:n-last], last)
	r.ReadAt(out[tail:], 0)
	return out
}

func wrap(pos, n int) int {
	pos %= n
	if pos < 0 {
		pos += n
	}
	return pos
}

// RMS is the root mean square amplitude of samples
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
