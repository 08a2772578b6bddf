package readership

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
)

func TestBuildCoInteraction(t *testing.T) {
	people := map[string][]string{
		"alice": {"b1", "b2", "b3"},
		"bob":   {"b2", "b3", "b3"},
		"carol": {"b4"},       // single item, ignored
		"dave":  {"b5", "b5"}, // duplicates collapse to one item
	}

	catalog, g, err := BuildCoInteraction(people)
	require.NoError(t, err)

	assert.Equal(t, []string{"b1", "b2", "b3"}, catalog.Items)
	assert.Equal(t, 2, catalog.Index["b3"])
	assert.Equal(t, "b2", catalog.Name(1))
	assert.Equal(t, 3, g.NumVertices())
	assert.Equal(t, 6, g.NumEdges())

	weight := func(u, v string) float64 {
		e, ok := g.Index(catalog.Index[u], catalog.Index[v])
		require.True(t, ok)
		return g.Weight(e)
	}
	assert.Equal(t, 1.0, weight("b1", "b2"))
	assert.Equal(t, 1.0, weight("b1", "b3"))
	assert.Equal(t, 2.0, weight("b3", "b2"))
}

func TestBuildCoInteractionEmpty(t *testing.T) {
	_, _, err := BuildCoInteraction(map[string][]string{"alice": {"b1"}, "bob": {"b2", "b2"}})
	assert.ErrorIs(t, err, bkn.ErrEmptyGraph)
}

func TestCatalogLabelled(t *testing.T) {
	catalog := &Catalog{Items: []string{"a", "b"}, Index: map[string]int{"a": 0, "b": 1}}
	labelled := catalog.Labelled(map[string]string{"b": "Middlemarch"})

	assert.Equal(t, []string{"a", "Middlemarch"}, labelled.Items)
	assert.Equal(t, 1, labelled.Index["Middlemarch"])
	assert.Equal(t, []string{"a", "b"}, catalog.Items)
}

func TestReadEdgeList(t *testing.T) {
	input := `# comment
% another comment
0 1
1 2 3

2 0 1.0
0 1
`
	g, err := ReadEdgeList(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 3, g.NumVertices())
	assert.Equal(t, 6, g.NumEdges())
	e, _ := g.Index(1, 0)
	assert.Equal(t, 2.0, g.Weight(e))
	e, _ = g.Index(2, 1)
	assert.Equal(t, 3.0, g.Weight(e))
}

func TestReadEdgeListErrors(t *testing.T) {
	tests := map[string]string{
		"too few fields":     "0\n",
		"bad vertex":         "a 1\n",
		"fractional weight":  "0 1 1.5\n",
		"zero weight":        "0 1 0\n",
		"negative vertex":    "-1 2\n",
		"self-loop":          "3 3\n",
		"only comments":      "# nothing\n",
		"too many fields":    "0 1 1 1\n",
		"bad target vertex":  "0 x\n",
		"non-numeric weight": "0 1 w\n",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadEdgeList(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestReadInteractionsAndLabels(t *testing.T) {
	people, err := ReadInteractions(strings.NewReader(`{"u1": ["a", "b"], "u2": ["b"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, people["u1"])

	labels, err := ReadItemLabels(strings.NewReader(`{"a": "Emma"}`))
	require.NoError(t, err)
	assert.Equal(t, "Emma", labels["a"])

	_, err = ReadInteractions(strings.NewReader(`[`))
	assert.Error(t, err)
}

func TestBorrowersToItems(t *testing.T) {
	input := `[
		{"event_type": "Borrow", "item": {"uri": "book/1"}, "member": {"uris": ["m/1", "m/2"]}},
		{"event_type": "Borrow", "item": {"uri": "book/2"}, "member": {"uris": ["m/1"]}},
		{"event_type": "Borrow", "item": {"uri": "book/2"}, "member": {"uris": ["m/1"]}},
		{"event_type": "Purchase", "item": {"uri": "book/3"}, "member": {"uris": ["m/1"]}},
		{"event_type": "Borrow", "item": {"uri": ""}, "member": {"uris": ["m/3"]}}
	]`
	events, err := ReadEvents(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 5)

	people := BorrowersToItems(events, nil)
	assert.ElementsMatch(t, []string{"book/1", "book/2"}, people["m/1"])
	assert.Equal(t, []string{"book/1"}, people["m/2"])
	assert.NotContains(t, people, "m/3")

	kept := BorrowersToItems(events, map[string]bool{"book/2": true})
	assert.Equal(t, map[string][]string{"m/1": {"book/2"}}, kept)
}

func TestFromGonum(t *testing.T) {
	g := simple.NewWeightedUndirectedGraph(0, 0)
	g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(10), simple.Node(30), 2))
	g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(30), simple.Node(20), 1))

	out, ids, err := FromGonum(g)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)
	assert.Equal(t, 4, out.NumEdges())

	e, ok := out.Index(0, 2)
	require.True(t, ok)
	assert.Equal(t, 2.0, out.Weight(e))
	_, ok = out.Index(0, 1)
	assert.False(t, ok)
}

func TestFromGonumRejectsFractionalWeight(t *testing.T) {
	g := simple.NewWeightedUndirectedGraph(0, 0)
	g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(0), simple.Node(1), 0.5))

	_, _, err := FromGonum(g)
	assert.Error(t, err)
}

func TestFromAdjacency(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{
		0, 2, 0,
		2, 0, 1,
		0, 1, 0,
	})
	g, err := FromAdjacency(a)
	require.NoError(t, err)
	assert.Equal(t, 4, g.NumEdges())
	assert.Equal(t, 3.0, g.Degree(1))

	t.Run("asymmetric", func(t *testing.T) {
		_, err := FromAdjacency(mat.NewDense(2, 2, []float64{0, 1, 0, 0}))
		assert.ErrorIs(t, err, bkn.ErrInvalidGraph)
	})

	t.Run("diagonal", func(t *testing.T) {
		_, err := FromAdjacency(mat.NewDense(2, 2, []float64{1, 1, 1, 0}))
		assert.ErrorIs(t, err, bkn.ErrInvalidGraph)
	})

	t.Run("not square", func(t *testing.T) {
		_, err := FromAdjacency(mat.NewDense(2, 3, nil))
		assert.Error(t, err)
	})
}

func TestKarateClub(t *testing.T) {
	g, err := KarateClubGraph()
	require.NoError(t, err)

	assert.Equal(t, KarateClubSize, g.NumVertices())
	assert.Equal(t, 156, g.NumEdges())
	assert.Equal(t, 0, g.NumIsolated())
	assert.Equal(t, 16.0, g.Degree(0))
	assert.Equal(t, 17.0, g.Degree(33))
}

func TestSummarize(t *testing.T) {
	g, err := KarateClubGraph()
	require.NoError(t, err)

	s := Summarize(g, nil, 3)
	assert.Equal(t, 34, s.NumVertices)
	assert.Equal(t, 78, s.UniqueEdges)
	assert.Equal(t, 78, s.TotalWeight)
	require.Len(t, s.TopVertices, 3)
	assert.Equal(t, VertexDegree{Vertex: 33, Neighbors: 17}, s.TopVertices[0])
	assert.Equal(t, VertexDegree{Vertex: 0, Neighbors: 16}, s.TopVertices[1])
	assert.Equal(t, VertexDegree{Vertex: 32, Neighbors: 12}, s.TopVertices[2])

	named := Summarize(g, []string{"Mr. Hi"}, 100)
	assert.Len(t, named.TopVertices, 34)
	assert.Equal(t, "Mr. Hi", named.TopVertices[1].Name)
}
