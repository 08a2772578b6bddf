package bkn

import (
	"encoding/json"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Labels is the hard community assignment C of every directed edge entry.
// It is immutable once extracted.
type Labels struct {
	graph     *Graph
	k         int
	community []int // community[e] for edge index e
}

// EdgeLabel is the serialized form of one labelled edge.
type EdgeLabel struct {
	From      int `json:"from"`
	To        int `json:"to"`
	Community int `json:"community"`
}

// ExtractLabels returns C[(i,j)] = argmax_z q[e(i,j), z] for every edge,
// where q is the m x K responsibility matrix. Ties go to the lowest
// community index.
func ExtractLabels(g *Graph, q mat.Matrix) *Labels {
	m, k := q.Dims()
	labels := &Labels{
		graph:     g,
		k:         k,
		community: make([]int, m),
	}
	row := make([]float64, k)
	for e := 0; e < m; e++ {
		mat.Row(row, e, q)
		labels.community[e] = floats.MaxIdx(row)
	}
	return labels
}

// NumCommunities returns K.
func (l *Labels) NumCommunities() int { return l.k }

// Len returns the number of labelled directed entries.
func (l *Labels) Len() int { return len(l.community) }

// At returns the community of the edge at index e.
func (l *Labels) At(e int) int { return l.community[e] }

// Community returns the community of edge (i, j).
func (l *Labels) Community(i, j int) (int, bool) {
	e, ok := l.graph.Index(i, j)
	if !ok {
		return 0, false
	}
	return l.community[e], true
}

// Slice returns a copy of the labels in edge-index order.
func (l *Labels) Slice() []int {
	return append([]int(nil), l.community...)
}

// ByEdge returns the labels as a map keyed by edge.
func (l *Labels) ByEdge() map[Edge]int {
	out := make(map[Edge]int, len(l.community))
	for e, c := range l.community {
		out[l.graph.Edge(e)] = c
	}
	return out
}

// Counts returns the number of directed entries assigned to each community.
func (l *Labels) Counts() []int {
	counts := make([]int, l.k)
	for _, c := range l.community {
		counts[c]++
	}
	return counts
}

// VertexShares returns an n x K matrix whose row i holds the fraction of
// vertex i's neighbors whose edge to i is labelled z. Isolated vertices
// have an all-zero row.
func (l *Labels) VertexShares() *mat.Dense {
	n := l.graph.NumVertices()
	shares := mat.NewDense(n, l.k, nil)
	for i := 0; i < n; i++ {
		start, end := l.graph.Incident(i)
		if start == end {
			continue
		}
		row := shares.RawRowView(i)
		for e := start; e < end; e++ {
			row[l.community[e]]++
		}
		floats.Scale(1/float64(end-start), row)
	}
	return shares
}

// MarshalJSON encodes the labels as a list of undirected edges (From < To).
func (l *Labels) MarshalJSON() ([]byte, error) {
	out := make([]EdgeLabel, 0, len(l.community)/2)
	for e, c := range l.community {
		edge := l.graph.Edge(e)
		if edge.To < edge.From {
			continue
		}
		out = append(out, EdgeLabel{From: edge.From, To: edge.To, Community: c})
	}
	return json.Marshal(out)
}
