package bkn

import "math"

// Controller implements the stopping rule of the EM loop: iterate while the
// absolute change in log-likelihood is at least epsilon. Deltas may be
// negative since the clamped updates do not guarantee monotone ascent, so
// only the magnitude is compared. A positive maxIterations bounds the loop.
type Controller struct {
	epsilon       float64
	maxIterations int
	current       float64
	delta         float64
	iteration     int
}

// NewController starts a controller at the pre-iteration log-likelihood.
func NewController(epsilon float64, maxIterations int, initial float64) *Controller {
	return &Controller{
		epsilon:       epsilon,
		maxIterations: maxIterations,
		current:       initial,
		delta:         math.Inf(1),
	}
}

// Continue reports whether another update pass should run.
func (c *Controller) Continue() bool {
	return !c.Converged() && !c.Capped()
}

// Observe records the log-likelihood after an update pass and returns the
// change from the previous value.
func (c *Controller) Observe(ll float64) float64 {
	c.iteration++
	c.delta = ll - c.current
	c.current = ll
	return c.delta
}

// Converged reports whether the last delta fell below epsilon.
func (c *Controller) Converged() bool { return math.Abs(c.delta) < c.epsilon }

// Capped reports whether the iteration bound has been reached.
func (c *Controller) Capped() bool {
	return c.maxIterations > 0 && c.iteration >= c.maxIterations
}

func (c *Controller) Iteration() int { return c.iteration }
func (c *Controller) Delta() float64 { return c.delta }
func (c *Controller) LogLikelihood() float64 { return c.current }
