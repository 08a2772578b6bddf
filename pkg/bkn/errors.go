package bkn

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidModelState is returned when the likelihood needs the log of a
	// dot product that is zero or not finite.
	ErrInvalidModelState = errors.New("invalid model state")

	// ErrInvalidConfig is returned when the engine configuration is rejected
	// before any iteration starts.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyGraph is returned for graphs without vertices or edges.
	ErrEmptyGraph = errors.New("empty graph")

	// ErrInvalidGraph is returned when the edge set violates the undirected
	// multigraph invariants (symmetry, range, positive weight, no self-loops).
	ErrInvalidGraph = errors.New("invalid graph")

	// ErrNoUsableTrial is returned when every trial aborted or was discarded.
	ErrNoUsableTrial = errors.New("no usable trial")
)

// ModelStateError identifies the edge whose affinity dot product made the
// likelihood undefined.
type ModelStateError struct {
	From  int
	To    int
	Value float64
}

func (e *ModelStateError) Error() string {
	return fmt.Sprintf("theta dot product is %v for edge (%d, %d)", e.Value, e.From, e.To)
}

func (e *ModelStateError) Unwrap() error {
	return ErrInvalidModelState
}
