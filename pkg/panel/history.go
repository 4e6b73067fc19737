package panel

import (
	"sync"
	"time"

	"github.com/itohio/rcthermo/pkg/thermistor"
)

// History is a FIFO of samples bounded by a time window. Removal is based on
// timestamp, not count.
type History struct {
	mu      sync.RWMutex
	window  time.Duration
	samples []thermistor.Sample
}

// NewHistory keeps samples no older than window relative to the newest.
func NewHistory(window time.Duration) *History {
	return &History{window: window}
}

// Add appends s and drops samples outside the window.
func (h *History) Add(s thermistor.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.samples = append(h.samples, s)

	cutoff := s.Timestamp.Add(-h.window)
	i := 0
	for i < len(h.samples) && !h.samples[i].Timestamp.After(cutoff) {
		i++
	}
	if i > 0 {
		h.samples = append(h.samples[:0], h.samples[i:]...)
	}
}

// Samples returns a copy ordered oldest first.
func (h *History) Samples() []thermistor.Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]thermistor.Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

// Len returns the number of buffered samples.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.samples)
}

// Downsample decimates samples to at most maxPoints for drawing. It reuses dst
// when it has enough capacity.
func Downsample(dst, samples []thermistor.Sample, maxPoints int) []thermistor.Sample {
	if len(samples) <= maxPoints {
		if cap(dst) >= len(samples) {
			dst = dst[:len(samples)]
			copy(dst, samples)
			return dst
		}
		out := make([]thermistor.Sample, len(samples))
		copy(out, samples)
		return out
	}

	if cap(dst) >= maxPoints {
		dst = dst[:0]
	} else {
		dst = make([]thermistor.Sample, 0, maxPoints)
	}

	step := float64(len(samples)) / float64(maxPoints)
	for i := range maxPoints {
		dst = append(dst, samples[int(float64(i)*step)])
	}
	return dst
}

// bounds returns the temperature range of samples padded by 10%, never
// narrower than minSpan.
func bounds(samples []thermistor.Sample, minSpan float64) (lo, hi float64) {
	if len(samples) == 0 {
		return 0, minSpan
	}
	lo, hi = samples[0].Temperature, samples[0].Temperature
	for _, s := range samples[1:] {
		if s.Temperature < lo {
			lo = s.Temperature
		}
		if s.Temperature > hi {
			hi = s.Temperature
		}
	}
	margin := (hi - lo) * 0.1
	lo, hi = lo-margin, hi+margin
	if hi-lo < minSpan {
		mid := (hi + lo) / 2
		lo, hi = mid-minSpan/2, mid+minSpan/2
	}
	return lo, hi
}
