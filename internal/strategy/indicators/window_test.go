package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindowEviction(t *testing.T) {
	w := NewWindow(3)
	assert.False(t, w.Full())

	w.Push(1)
	w.Push(2)
	w.Push(3)
	assert.True(t, w.Full())
	assert.Equal(t, []float64{1, 2, 3}, w.Values())

	// Oldest sample is evicted first.
	w.Push(4)
	assert.Equal(t, []float64{2, 3, 4}, w.Values())
	assert.Equal(t, 4.0, w.Last())
	assert.Equal(t, 3, w.Len())
}

func TestWindowMeanAndStdDev(t *testing.T) {
	w := NewWindow(4)
	for _, v := range []float64{2, 4, 4, 4} {
		w.Push(v)
	}
	assert.InDelta(t, 3.5, w.Mean(), 1e-9)
	// Population stddev of {2,4,4,4} = sqrt(0.75)
	assert.InDelta(t, 0.8660254, w.StdDev(), 1e-6)
}

func TestWindowReset(t *testing.T) {
	w := NewWindow(2)
	w.Push(1)
	w.Push(2)
	w.Reset()
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 0.0, w.Mean())
	assert.Equal(t, 0.0, w.Last())
}

func TestMeanEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 0.0, StdDev(nil))
}
