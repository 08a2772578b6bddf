package bkn_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
	"github.com/gilchrisn/readership-communities/pkg/readership"
)

func newEngine(t *testing.T, settings map[string]interface{}) *bkn.Engine {
	t.Helper()
	config := bkn.NewConfig()
	config.Set("logging.enable_progress", false)
	for k, v := range settings {
		config.Set(k, v)
	}
	engine, err := bkn.NewEngine(config)
	require.NoError(t, err)
	return engine.WithLogger(zerolog.Nop())
}

func TestDetectKarateClub(t *testing.T) {
	g, err := readership.KarateClubGraph()
	require.NoError(t, err)

	engine := newEngine(t, map[string]interface{}{
		"algorithm.num_communities": 2,
		"algorithm.num_trials":      5,
		"algorithm.random_seed":     int64(42),
	})
	result, err := engine.Detect(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, 34, result.NumVertices)
	assert.Equal(t, 156, result.NumEdges)
	assert.Equal(t, int64(42), result.Seed)
	require.Len(t, result.Trials, 5)

	// every directed entry is labelled exactly once
	byEdge := result.Labels.ByEdge()
	assert.Len(t, byEdge, g.NumEdges())
	for e := 0; e < g.NumEdges(); e++ {
		c, ok := byEdge[g.Edge(e)]
		require.True(t, ok)
		assert.True(t, c == 0 || c == 1)
	}

	best := result.Trials[result.BestTrial]
	assert.Greater(t, result.LogLikelihood, best.InitialLogLikelihood)
	assert.Equal(t, best.LogLikelihood, result.LogLikelihood)
	assert.InDelta(t, 1.0, best.Agreement, 1e-12)
	for _, tr := range result.Trials {
		assert.Contains(t, []bkn.TrialStatus{bkn.StatusConverged, bkn.StatusIterationCap}, tr.Status)
		assert.LessOrEqual(t, tr.LogLikelihood, result.LogLikelihood)
	}
}

func TestDetectIsReproducibleWithSeed(t *testing.T) {
	g, err := readership.KarateClubGraph()
	require.NoError(t, err)

	settings := map[string]interface{}{
		"algorithm.num_trials":  4,
		"algorithm.random_seed": int64(7),
		"algorithm.epsilon":     0.01,
	}
	first, err := newEngine(t, settings).Detect(context.Background(), g)
	require.NoError(t, err)

	settings["performance.parallel"] = false
	second, err := newEngine(t, settings).Detect(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, first.BestTrial, second.BestTrial)
	assert.Equal(t, first.LogLikelihood, second.LogLikelihood)
	assert.Equal(t, first.Labels.Slice(), second.Labels.Slice())
}

// twoCliques returns two 5-cliques on {0..4} and {5..9} joined by 4-5.
func twoCliques(t *testing.T) *bkn.Graph {
	t.Helper()
	b := bkn.NewBuilder(10)
	for _, offset := range []int{0, 5} {
		for i := 0; i < 5; i++ {
			for j := i + 1; j < 5; j++ {
				require.NoError(t, b.AddLink(offset+i, offset+j, 1))
			}
		}
	}
	require.NoError(t, b.AddLink(4, 5, 1))
	g, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestDetectTwoCliques(t *testing.T) {
	g := twoCliques(t)
	engine := newEngine(t, map[string]interface{}{
		"algorithm.num_communities": 2,
		"algorithm.num_trials":      10,
		"algorithm.epsilon":         1e-6,
		"algorithm.random_seed":     int64(3),
	})

	result, err := engine.Detect(context.Background(), g)
	require.NoError(t, err)

	majority := func(lo, hi int) (int, float64) {
		counts := make([]int, 2)
		total := 0
		for e := 0; e < g.NumEdges(); e++ {
			edge := g.Edge(e)
			if edge.From >= lo && edge.From < hi && edge.To >= lo && edge.To < hi {
				counts[result.Labels.At(e)]++
				total++
			}
		}
		if counts[1] > counts[0] {
			return 1, float64(counts[1]) / float64(total)
		}
		return 0, float64(counts[0]) / float64(total)
	}

	left, leftShare := majority(0, 5)
	right, rightShare := majority(5, 10)
	assert.NotEqual(t, left, right)
	assert.GreaterOrEqual(t, leftShare, 0.9)
	assert.GreaterOrEqual(t, rightShare, 0.9)
}

func TestDetectSingleEdgeSingleCommunity(t *testing.T) {
	b := bkn.NewBuilder(2)
	require.NoError(t, b.AddLink(0, 1, 1))
	g, err := b.Build()
	require.NoError(t, err)

	engine := newEngine(t, map[string]interface{}{
		"algorithm.num_communities": 1,
		"algorithm.num_trials":      3,
		"algorithm.random_seed":     int64(1),
	})
	result, err := engine.Detect(context.Background(), g)
	require.NoError(t, err)

	for _, tr := range result.Trials {
		assert.Equal(t, bkn.StatusConverged, tr.Status)
		assert.LessOrEqual(t, tr.Iterations, 2)
	}
	assert.InDelta(t, 0.5, result.Theta.At(0, 0)*result.Theta.At(1, 0), 1e-12)
	assert.Equal(t, []int{2}, result.Labels.Counts())
}

func TestNewEngineRejectsInvalidConfig(t *testing.T) {
	config := bkn.NewConfig()
	config.Set("algorithm.num_communities", 0)

	_, err := bkn.NewEngine(config)
	assert.ErrorIs(t, err, bkn.ErrInvalidConfig)
}

func TestDetectRejectsEmptyGraph(t *testing.T) {
	engine := newEngine(t, nil)
	_, err := engine.Detect(context.Background(), nil)
	assert.ErrorIs(t, err, bkn.ErrEmptyGraph)
}

func TestDetectCancelled(t *testing.T) {
	g := twoCliques(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEngine(t, nil).Detect(ctx, g)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDetectExpiredDeadline(t *testing.T) {
	g := twoCliques(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := newEngine(t, nil).Detect(ctx, g)
	assert.ErrorIs(t, err, bkn.ErrNoUsableTrial)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDetectReportsProgress(t *testing.T) {
	g := twoCliques(t)
	calls := make(chan int, 10000)

	engine := newEngine(t, map[string]interface{}{
		"algorithm.num_trials":  2,
		"algorithm.random_seed": int64(5),
	}).WithProgress(func(trial, iteration int, ll, delta float64) {
		calls <- trial
	})
	result, err := engine.Detect(context.Background(), g)
	require.NoError(t, err)
	close(calls)

	total := 0
	for range calls {
		total++
	}
	assert.Equal(t, result.Trials[0].Iterations+result.Trials[1].Iterations, total)
}

func TestGetCommunities(t *testing.T) {
	g := twoCliques(t)
	labels, err := bkn.GetCommunities(context.Background(), g, 2, 3, false)
	require.NoError(t, err)
	assert.Equal(t, g.NumEdges(), labels.Len())
	assert.Equal(t, 2, labels.NumCommunities())
}
