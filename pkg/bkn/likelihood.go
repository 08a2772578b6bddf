package bkn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogLikelihood returns the Poisson-mixture log-likelihood of theta given
// the fixed edge weights:
//
//	sum_e w_e*ln(theta_i . theta_j) - sum_e theta_i . theta_j
//
// summed over every directed entry e = (i, j). A zero or non-finite dot
// product makes the value undefined and yields a *ModelStateError.
func LogLikelihood(g *Graph, theta *mat.Dense) (float64, error) {
	rows, _ := theta.Dims()
	if rows != g.NumVertices() {
		return 0, fmt.Errorf("%w: theta has %d rows, graph has %d vertices",
			ErrInvalidModelState, rows, g.NumVertices())
	}

	left, right := 0.0, 0.0
	for e, edge := range g.edges {
		d := floats.Dot(theta.RawRowView(edge.From), theta.RawRowView(edge.To))
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return 0, &ModelStateError{From: edge.From, To: edge.To, Value: d}
		}
		left += g.weights[e] * math.Log(d)
		right += d
	}

	ll := left - right
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return 0, fmt.Errorf("%w: log-likelihood is %v", ErrInvalidModelState, ll)
	}
	return ll, nil
}
