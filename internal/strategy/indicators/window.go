package indicators

import "math"

// Window is a bounded FIFO of float64 samples. Pushing beyond capacity
// evicts the oldest sample. The zero value is not usable; use NewWindow.
type Window struct {
	values []float64
	size   int
}

// NewWindow creates a rolling window holding at most size samples.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 1
	}
	return &Window{values: make([]float64, 0, size), size: size}
}

// Push appends a sample, evicting the oldest one when the window is full.
func (w *Window) Push(v float64) {
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values[len(w.values)-1] = v
		return
	}
	w.values = append(w.values, v)
}

// Full reports whether the window holds its configured number of samples.
func (w *Window) Full() bool {
	return len(w.values) == w.size
}

// Len returns the current number of samples.
func (w *Window) Len() int {
	return len(w.values)
}

// Values returns the samples oldest-first. The returned slice is the
// window's backing storage; callers must not modify it.
func (w *Window) Values() []float64 {
	return w.values
}

// Last returns the most recent sample, or 0 when empty.
func (w *Window) Last() float64 {
	if len(w.values) == 0 {
		return 0
	}
	return w.values[len(w.values)-1]
}

// Mean returns the arithmetic mean of the samples, or 0 when empty.
func (w *Window) Mean() float64 {
	return Mean(w.values)
}

// StdDev returns the population standard deviation of the samples.
func (w *Window) StdDev() float64 {
	return StdDev(w.values)
}

// Reset discards all samples.
func (w *Window) Reset() {
	w.values = w.values[:0]
}

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
