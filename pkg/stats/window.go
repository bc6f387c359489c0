// Package stats provides the measurement side of adaptive preview
// calculation: bounded sample windows, confidence intervals over them, and
// the per-step performance record the row budget estimator consumes.
package stats

// DefaultWindowSize is the number of samples a window retains unless
// configured otherwise. Older samples are discarded first, so estimates
// track recent behavior of a step rather than its whole history.
const DefaultWindowSize = 10

// Window is a bounded sliding window of float64 samples. Not safe for
// concurrent use; callers serialize access.
type Window struct {
	capacity int
	samples  []float64
}

// NewWindow creates a window holding at most capacity samples. A
// non-positive capacity falls back to DefaultWindowSize.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{capacity: capacity, samples: make([]float64, 0, capacity)}
}

// Append adds a sample, discarding the oldest one when the window is full.
func (w *Window) Append(v float64) {
	if len(w.samples) == w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples[len(w.samples)-1] = v
		return
	}
	w.samples = append(w.samples, v)
}

// Len returns the number of retained samples.
func (w *Window) Len() int {
	return len(w.samples)
}

// Mean returns the arithmetic mean of the retained samples, or 0 when the
// window is empty.
func (w *Window) Mean() float64 {
	if len(w.samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.samples {
		sum += v
	}
	return sum / float64(len(w.samples))
}

// Values returns a copy of the retained samples, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return out
}

// Confidence returns the confidence interval of the retained samples at
// the given certainty. See ConfidenceInterval for the edge cases.
func (w *Window) Confidence(certainty float64) (Interval, bool) {
	return ConfidenceInterval(w.samples, certainty)
}
