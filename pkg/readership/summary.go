package readership

import (
	"sort"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
)

// VertexDegree is a vertex with its neighbor count.
type VertexDegree struct {
	Vertex    int    `json:"vertex"`
	Name      string `json:"name,omitempty"`
	Neighbors int    `json:"neighbors"`
}

// Summary holds the headline statistics of a co-interaction graph.
type Summary struct {
	NumVertices int            `json:"num_vertices"`
	UniqueEdges int            `json:"unique_edges"`
	TotalWeight int            `json:"total_weight"` // edges counted with multiplicity
	TopVertices []VertexDegree `json:"top_vertices"`
}

// Summarize counts undirected edges once and lists the top vertices by
// number of distinct neighbors (ties by vertex index). names may be nil.
func Summarize(g *bkn.Graph, names []string, top int) Summary {
	s := Summary{
		NumVertices: g.NumVertices(),
		UniqueEdges: g.NumEdges() / 2,
		TotalWeight: int(g.TotalWeight()) / 2,
	}

	degrees := make([]VertexDegree, g.NumVertices())
	for i := range degrees {
		start, end := g.Incident(i)
		degrees[i] = VertexDegree{Vertex: i, Neighbors: end - start}
		if i < len(names) {
			degrees[i].Name = names[i]
		}
	}
	sort.SliceStable(degrees, func(a, b int) bool {
		return degrees[a].Neighbors > degrees[b].Neighbors
	})
	if top > len(degrees) {
		top = len(degrees)
	}
	if top > 0 {
		s.TopVertices = degrees[:top]
	}
	return s
}
