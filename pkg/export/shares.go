package export

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
)

// WriteCommunityShares writes one line per vertex with the percentage of
// its edges in each community, ordered by ascending community-0 share:
//
//	Vertex 12: 87.5, 12.5
func WriteCommunityShares(w io.Writer, shares mat.Matrix) error {
	n, k := shares.Dims()
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return shares.At(order[a], 0) < shares.At(order[b], 0)
	})

	bw := bufio.NewWriter(w)
	for _, i := range order {
		cols := make([]string, k)
		for z := 0; z < k; z++ {
			cols[z] = fmt.Sprintf("%.1f", shares.At(i, z)*100)
		}
		if _, err := fmt.Fprintf(bw, "Vertex %d: %s\n", i, strings.Join(cols, ", ")); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Member is one vertex listed under a community.
type Member struct {
	Vertex int     `json:"vertex"`
	Name   string  `json:"name,omitempty"`
	Share  float64 `json:"share"`  // fraction of the vertex's edges in the community
	Degree float64 `json:"degree"` // weighted degree
}

// CommunitySummary lists the vertices most attached to one community.
type CommunitySummary struct {
	Community int      `json:"community"`
	Edges     int      `json:"edges"` // undirected edges labelled with the community
	Vertices  int      `json:"vertices"`
	MeanShare float64  `json:"mean_share"`
	StdShare  float64  `json:"std_share"`
	Members   []Member `json:"members"`
}

// CommunitySummaries ranks, for every community, the vertices with a
// non-zero share by share and then weighted degree, keeping at most top
// members (all when top <= 0).
func CommunitySummaries(g *bkn.Graph, labels *bkn.Labels, names []string, top int) []CommunitySummary {
	shares := labels.VertexShares()
	counts := labels.Counts()
	n, k := shares.Dims()

	summaries := make([]CommunitySummary, k)
	for z := 0; z < k; z++ {
		var members []Member
		var values []float64
		for i := 0; i < n; i++ {
			share := shares.At(i, z)
			if share == 0 {
				continue
			}
			m := Member{Vertex: i, Share: share, Degree: g.Degree(i)}
			if i < len(names) {
				m.Name = names[i]
			}
			members = append(members, m)
			values = append(values, share)
		}
		sort.SliceStable(members, func(a, b int) bool {
			if members[a].Share != members[b].Share {
				return members[a].Share > members[b].Share
			}
			return members[a].Degree > members[b].Degree
		})

		summary := CommunitySummary{
			Community: z,
			Edges:     counts[z] / 2,
			Vertices:  len(members),
		}
		switch {
		case len(values) > 1:
			summary.MeanShare, summary.StdShare = stat.MeanStdDev(values, nil)
		case len(values) == 1:
			summary.MeanShare = values[0]
		}
		if top > 0 && len(members) > top {
			members = members[:top]
		}
		summary.Members = members
		summaries[z] = summary
	}
	return summaries
}
