package bkn

import (
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Model is the mutable (theta, q) pair owned by a single trial.
//
// theta is n x K. Responsibilities are stored community-major (K x m) so
// that the column q[., z] of the conceptual m x K matrix is one contiguous
// row and each vertex's incident block is a contiguous sub-slice of it.
type Model struct {
	graph *Graph
	k     int
	theta *mat.Dense
	resp  *mat.Dense

	logger  zerolog.Logger
	verbose bool
}

// UpdateStats counts the degenerate cases recovered during one update pass.
type UpdateStats struct {
	DegenerateEdges       int `json:"degenerate_edges"`       // zero theta_i . theta_j in the q update
	DegenerateCommunities int `json:"degenerate_communities"` // zero normalizer in the theta update
	ZeroAffinities        int `json:"zero_affinities"`        // theta[i,z] set to exactly zero
}

// NewModel allocates a zeroed model for k communities on g.
func NewModel(g *Graph, k int) *Model {
	return &Model{
		graph:  g,
		k:      k,
		theta:  mat.NewDense(g.NumVertices(), k, nil),
		resp:   mat.NewDense(k, g.NumEdges(), nil),
		logger: zerolog.Nop(),
	}
}

// NewModelFromTheta builds a model whose affinities are a copy of theta.
// Responsibilities start at zero until the first update.
func NewModelFromTheta(g *Graph, theta mat.Matrix) *Model {
	_, k := theta.Dims()
	m := NewModel(g, k)
	m.theta.Copy(theta)
	return m
}

// WithDiagnostics routes degenerate-update messages to logger when verbose.
func (m *Model) WithDiagnostics(logger zerolog.Logger, verbose bool) *Model {
	m.logger = logger
	m.verbose = verbose
	return m
}

// Randomize fills theta and q with independent uniform [0, 1) draws.
func (m *Model) Randomize(src rand.Source) {
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	fill := func(d *mat.Dense) {
		r, c := d.Dims()
		for i := 0; i < r; i++ {
			row := d.RawRowView(i)
			for j := 0; j < c; j++ {
				row[j] = math.Abs(u.Rand())
			}
		}
	}
	fill(m.theta)
	fill(m.resp)
}

// NumCommunities returns K.
func (m *Model) NumCommunities() int { return m.k }

// Theta returns the affinity matrix. It is mutated by Step.
func (m *Model) Theta() *mat.Dense { return m.theta }

// Responsibility returns q[e, z].
func (m *Model) Responsibility(e, z int) float64 { return m.resp.At(z, e) }

// Responsibilities returns an m x K view of q.
func (m *Model) Responsibilities() mat.Matrix { return m.resp.T() }

// LogLikelihood evaluates the current theta.
func (m *Model) LogLikelihood() (float64, error) {
	return LogLikelihood(m.graph, m.theta)
}

// Step runs one full E-step followed by one M-step.
func (m *Model) Step() UpdateStats {
	var stats UpdateStats
	stats.DegenerateEdges = m.UpdateResponsibilities()
	stats.DegenerateCommunities, stats.ZeroAffinities = m.UpdateAffinities()
	return stats
}

// UpdateResponsibilities sets q[(i,j), z] = theta[i,z]*theta[j,z] / (theta_i . theta_j).
// Edges whose denominator is zero get q = 0 in every community; the count
// of such edges is returned.
func (m *Model) UpdateResponsibilities() int {
	degenerate := 0
	for e, edge := range m.graph.edges {
		ti := m.theta.RawRowView(edge.From)
		tj := m.theta.RawRowView(edge.To)
		denom := floats.Dot(ti, tj)
		if denom == 0 {
			degenerate++
			if m.verbose {
				m.logger.Info().Int("from", edge.From).Int("to", edge.To).Msg("Denominator in q is zero")
			}
			for z := 0; z < m.k; z++ {
				m.resp.Set(z, e, 0)
			}
			continue
		}
		for z := 0; z < m.k; z++ {
			m.resp.Set(z, e, ti[z]*tj[z]/denom)
		}
	}
	return degenerate
}

// UpdateAffinities sets theta[i,z] = sum_{e from i} w_e q[e,z] / sqrt(sum_e w_e q[e,z]).
// The numerator is taken over the contiguous block of edges incident to i.
// A zero normalizer defines the whole column as zero. It returns the number
// of degenerate communities and the number of exactly-zero affinities.
func (m *Model) UpdateAffinities() (degenerateCommunities, zeroAffinities int) {
	weights := m.graph.weights
	n := m.graph.NumVertices()
	for z := 0; z < m.k; z++ {
		qz := m.resp.RawRowView(z)
		denom := math.Sqrt(floats.Dot(weights, qz))
		if denom == 0 {
			degenerateCommunities++
			if m.verbose {
				m.logger.Info().Int("community", z).Msg("Normalizer for theta column is zero")
			}
		}
		for i := 0; i < n; i++ {
			start, end := m.graph.Incident(i)
			dot := floats.Dot(weights[start:end], qz[start:end])
			value := 0.0
			if denom != 0 {
				value = dot / denom
			}
			if value == 0 {
				zeroAffinities++
				if m.verbose {
					m.logger.Info().Int("vertex", i).Int("community", z).Msg("theta is zero")
				}
			}
			m.theta.Set(i, z, value)
		}
	}
	return degenerateCommunities, zeroAffinities
}

// Labels derives the hard community of every edge from the current q.
func (m *Model) Labels() *Labels {
	return ExtractLabels(m.graph, m.Responsibilities())
}
