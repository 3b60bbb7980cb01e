package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowPassFilterDCResponse(t *testing.T) {
	f := NewLowPassFilter(100, 1, 0)
	const x = 42.0
	// tau = RC; 20*tau samples at 100Hz is comfortably more than enough
	// settling time for a 1% band.
	for i := 0; i < 4000; i++ {
		f.Apply(x)
	}
	assert.InDelta(t, x, f.Value(), x*0.01)
}

func TestLowPassFilterMonotoneTowardInput(t *testing.T) {
	f := NewLowPassFilter(100, 5, 0)
	prev := f.Value()
	require.Less(t, prev, 10.0)
	y := f.Apply(10)
	assert.Greater(t, y, prev)
	assert.Less(t, y, 10.0)

	f2 := NewLowPassFilter(100, 5, 10)
	prev2 := f2.Value()
	require.Greater(t, prev2, 0.0)
	y2 := f2.Apply(0)
	assert.Less(t, y2, prev2)
	assert.Greater(t, y2, 0.0)
}

func TestLowPassFilterResetAndValue(t *testing.T) {
	f := NewLowPassFilter(50, 2, 100)
	assert.Equal(t, 100.0, f.Value())
	f.Reset(5)
	assert.Equal(t, 5.0, f.Value())
}
