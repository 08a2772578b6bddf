package readership

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
)

// integerWeight accepts weights that are positive whole numbers up to
// floating-point noise.
func integerWeight(w float64) (int, error) {
	r := math.Round(w)
	if r < 1 || math.Abs(w-r) > 1e-9 {
		return 0, fmt.Errorf("edge weight must be a positive integer, got %v", w)
	}
	return int(r), nil
}

// FromGonum converts an undirected weighted gonum graph. Node ids are mapped
// to dense vertex indices in ascending id order; the returned slice gives
// the original id of each vertex.
func FromGonum(g graph.WeightedUndirected) (*bkn.Graph, []int64, error) {
	nodes := graph.NodesOf(g.Nodes())
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID()
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	index := make(map[int64]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	builder := bkn.NewBuilder(len(ids))
	for _, uid := range ids {
		for _, v := range graph.NodesOf(g.From(uid)) {
			vid := v.ID()
			if vid <= uid {
				continue
			}
			w, ok := g.Weight(uid, vid)
			if !ok {
				continue
			}
			weight, err := integerWeight(w)
			if err != nil {
				return nil, nil, fmt.Errorf("edge %d-%d: %w", uid, vid, err)
			}
			if err := builder.AddLink(index[uid], index[vid], weight); err != nil {
				return nil, nil, err
			}
		}
	}

	g2, err := builder.Build()
	if err != nil {
		return nil, nil, err
	}
	return g2, ids, nil
}

// FromAdjacency converts a symmetric adjacency matrix whose positive
// entries are edge multiplicities. The diagonal must be zero.
func FromAdjacency(a mat.Matrix) (*bkn.Graph, error) {
	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("adjacency matrix must be square, got %dx%d", r, c)
	}

	builder := bkn.NewBuilder(r)
	for u := 0; u < r; u++ {
		if a.At(u, u) != 0 {
			return nil, fmt.Errorf("%w: self-loop on vertex %d", bkn.ErrInvalidGraph, u)
		}
		for v := u + 1; v < r; v++ {
			w := a.At(u, v)
			if w != a.At(v, u) {
				return nil, fmt.Errorf("%w: adjacency matrix is not symmetric at (%d, %d)", bkn.ErrInvalidGraph, u, v)
			}
			if w == 0 {
				continue
			}
			weight, err := integerWeight(w)
			if err != nil {
				return nil, fmt.Errorf("entry (%d, %d): %w", u, v, err)
			}
			if err := builder.AddLink(u, v, weight); err != nil {
				return nil, err
			}
		}
	}
	return builder.Build()
}
