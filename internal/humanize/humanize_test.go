package humanize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGaussianDelayClamped(t *testing.T) {
	for i := 0; i < 1000; i++ {
		d := gaussianDelay(1000, 300)
		assert.GreaterOrEqual(t, d, 100)
		assert.LessOrEqual(t, d, 1900)
	}
}

func TestGaussianDelayNeverNegative(t *testing.T) {
	for i := 0; i < 1000; i++ {
		assert.GreaterOrEqual(t, gaussianDelay(100, 200), 0)
	}
}

func TestRandBetweenBounds(t *testing.T) {
	for i := 0; i < 1000; i++ {
		v := randBetween(10, 20)
		assert.GreaterOrEqual(t, v, 10)
		assert.LessOrEqual(t, v, 20)
	}
	assert.Equal(t, 5, randBetween(5, 5))
	assert.Equal(t, 7, randBetween(7, 3))
}

func TestEasingEndpoints(t *testing.T) {
	assert.InDelta(t, 0.0, easeInOutCubic(0), 1e-9)
	assert.InDelta(t, 1.0, easeInOutCubic(1), 1e-9)
}

func TestBezierEndpoints(t *testing.T) {
	assert.InDelta(t, 3.0, cubicBezier(3, 50, -20, 9, 0), 1e-9)
	assert.InDelta(t, 9.0, cubicBezier(3, 50, -20, 9, 1), 1e-9)
}
