package bkn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControllerStartsUnconverged(t *testing.T) {
	c := NewController(1.0, 0, -100)

	assert.True(t, c.Continue())
	assert.True(t, math.IsInf(c.Delta(), 1))
	assert.Equal(t, 0, c.Iteration())
	assert.Equal(t, -100.0, c.LogLikelihood())
}

func TestControllerStoppingRule(t *testing.T) {
	c := NewController(1.0, 0, -100)

	assert.Equal(t, 50.0, c.Observe(-50))
	assert.True(t, c.Continue())

	// decreases count by magnitude
	assert.Equal(t, -5.0, c.Observe(-55))
	assert.True(t, c.Continue())

	// exactly epsilon keeps iterating
	c.Observe(-54)
	assert.True(t, c.Continue())

	c.Observe(-53.5)
	assert.False(t, c.Continue())
	assert.True(t, c.Converged())
	assert.False(t, c.Capped())
	assert.Equal(t, 4, c.Iteration())
	assert.Equal(t, -53.5, c.LogLikelihood())
}

func TestControllerIterationCap(t *testing.T) {
	c := NewController(1.0, 3, 0)

	for i := 1; i <= 3; i++ {
		assert.True(t, c.Continue())
		c.Observe(float64(i * 10))
	}
	assert.False(t, c.Continue())
	assert.True(t, c.Capped())
	assert.False(t, c.Converged())
}
