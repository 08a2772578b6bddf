package bkn

import (
	"fmt"
	"sort"
)

// Edge is one directed entry (From, To) of the undirected multigraph.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Graph is an immutable edge arena over vertices [0, n). Every undirected
// link appears twice, once per direction, with equal weight. Entries are
// sorted by (From, To) so the edges incident to vertex i occupy the
// contiguous index range [offsets[i], offsets[i+1]).
type Graph struct {
	numVertices int
	edges       []Edge
	weights     []float64 // weights[e] = multiplicity of edges[e]
	offsets     []int     // CSR row pointers, len numVertices+1
	index       map[Edge]int
	degrees     []float64
	totalWeight float64
}

// NewGraph builds the arena from a symmetric edge-weight mapping.
func NewGraph(numVertices int, weights map[Edge]int) (*Graph, error) {
	if numVertices <= 0 {
		return nil, fmt.Errorf("%w: graph must have positive number of vertices", ErrEmptyGraph)
	}
	if len(weights) == 0 {
		return nil, ErrEmptyGraph
	}

	edges := make([]Edge, 0, len(weights))
	for e, w := range weights {
		if e.From < 0 || e.From >= numVertices || e.To < 0 || e.To >= numVertices {
			return nil, fmt.Errorf("%w: vertex index out of range in edge (%d, %d), numVertices=%d",
				ErrInvalidGraph, e.From, e.To, numVertices)
		}
		if e.From == e.To {
			return nil, fmt.Errorf("%w: self-loop on vertex %d", ErrInvalidGraph, e.From)
		}
		if w <= 0 {
			return nil, fmt.Errorf("%w: non-positive weight %d for edge (%d, %d)", ErrInvalidGraph, w, e.From, e.To)
		}
		rw, ok := weights[Edge{From: e.To, To: e.From}]
		if !ok || rw != w {
			return nil, fmt.Errorf("%w: graph is not symmetric: edge (%d, %d)", ErrInvalidGraph, e.From, e.To)
		}
		edges = append(edges, e)
	}

	sort.Slice(edges, func(a, b int) bool {
		if edges[a].From != edges[b].From {
			return edges[a].From < edges[b].From
		}
		return edges[a].To < edges[b].To
	})

	g := &Graph{
		numVertices: numVertices,
		edges:       edges,
		weights:     make([]float64, len(edges)),
		offsets:     make([]int, numVertices+1),
		index:       make(map[Edge]int, len(edges)),
		degrees:     make([]float64, numVertices),
	}
	for idx, e := range edges {
		w := float64(weights[e])
		g.weights[idx] = w
		g.index[e] = idx
		g.offsets[e.From+1]++
		g.degrees[e.From] += w
		g.totalWeight += w
	}
	for i := 0; i < numVertices; i++ {
		g.offsets[i+1] += g.offsets[i]
	}

	return g, nil
}

// NewGraphWithAdjacency builds the arena and checks that the supplied
// adjacency index lists exactly the neighbors present in the edge mapping.
// Neighbor order in the index is not significant.
func NewGraphWithAdjacency(numVertices int, weights map[Edge]int, adjacency map[int][]int) (*Graph, error) {
	g, err := NewGraph(numVertices, weights)
	if err != nil {
		return nil, err
	}

	for v, neighbors := range adjacency {
		if v < 0 || v >= numVertices {
			return nil, fmt.Errorf("%w: adjacency index has vertex %d out of range", ErrInvalidGraph, v)
		}
		sorted := append([]int(nil), neighbors...)
		sort.Ints(sorted)
		actual := g.Neighbors(v)
		if len(sorted) != len(actual) {
			return nil, fmt.Errorf("%w: adjacency index lists %d neighbors for vertex %d, edges give %d",
				ErrInvalidGraph, len(sorted), v, len(actual))
		}
		for k := range sorted {
			if sorted[k] != actual[k] {
				return nil, fmt.Errorf("%w: adjacency index of vertex %d disagrees with edges at neighbor %d",
					ErrInvalidGraph, v, sorted[k])
			}
		}
	}
	for v := 0; v < numVertices; v++ {
		if _, ok := adjacency[v]; !ok && g.offsets[v+1] > g.offsets[v] {
			return nil, fmt.Errorf("%w: adjacency index is missing vertex %d", ErrInvalidGraph, v)
		}
	}

	return g, nil
}

// NumVertices returns n.
func (g *Graph) NumVertices() int { return g.numVertices }

// NumEdges returns the number of directed entries m (twice the number of
// undirected links).
func (g *Graph) NumEdges() int { return len(g.edges) }

// Edge returns the directed entry stored at index e.
func (g *Graph) Edge(e int) Edge { return g.edges[e] }

// Weight returns the multiplicity of the entry at index e.
func (g *Graph) Weight(e int) float64 { return g.weights[e] }

// Weights exposes the weight array in edge-index order. Callers must not
// modify it.
func (g *Graph) Weights() []float64 { return g.weights }

// Index returns the edge index of (i, j).
func (g *Graph) Index(i, j int) (int, bool) {
	e, ok := g.index[Edge{From: i, To: j}]
	return e, ok
}

// Incident returns the half-open range of edge indices whose source is i.
func (g *Graph) Incident(i int) (start, end int) {
	return g.offsets[i], g.offsets[i+1]
}

// Neighbors returns the sorted neighbor list of vertex i.
func (g *Graph) Neighbors(i int) []int {
	start, end := g.Incident(i)
	neighbors := make([]int, 0, end-start)
	for e := start; e < end; e++ {
		neighbors = append(neighbors, g.edges[e].To)
	}
	return neighbors
}

// Degree returns the weighted degree of vertex i.
func (g *Graph) Degree(i int) float64 { return g.degrees[i] }

// TotalWeight returns the sum of weights over all directed entries.
func (g *Graph) TotalWeight() float64 { return g.totalWeight }

// NumIsolated counts vertices with no incident edges.
func (g *Graph) NumIsolated() int {
	count := 0
	for i := 0; i < g.numVertices; i++ {
		if g.offsets[i] == g.offsets[i+1] {
			count++
		}
	}
	return count
}

// Builder accumulates undirected links and produces a Graph. Adding the
// same link twice increases its multiplicity.
type Builder struct {
	numVertices int
	weights     map[Edge]int
}

// NewBuilder creates a builder for a graph with numVertices vertices.
func NewBuilder(numVertices int) *Builder {
	return &Builder{
		numVertices: numVertices,
		weights:     make(map[Edge]int),
	}
}

// AddLink adds weight to the undirected link u-v (both directions).
func (b *Builder) AddLink(u, v, weight int) error {
	if u < 0 || u >= b.numVertices || v < 0 || v >= b.numVertices {
		return fmt.Errorf("%w: vertex index out of range: u=%d, v=%d, numVertices=%d",
			ErrInvalidGraph, u, v, b.numVertices)
	}
	if u == v {
		return fmt.Errorf("%w: self-loop on vertex %d", ErrInvalidGraph, u)
	}
	if weight <= 0 {
		return fmt.Errorf("%w: link weight must be positive: %d", ErrInvalidGraph, weight)
	}

	b.weights[Edge{From: u, To: v}] += weight
	b.weights[Edge{From: v, To: u}] += weight
	return nil
}

// NumLinks returns the number of distinct undirected links added so far.
func (b *Builder) NumLinks() int { return len(b.weights) / 2 }

// Build validates and freezes the accumulated links.
func (b *Builder) Build() (*Graph, error) {
	return NewGraph(b.numVertices, b.weights)
}
