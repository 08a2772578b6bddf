package bkn

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticResult(trial int, status TrialStatus, ll float64) *TrialResult {
	return &TrialResult{
		Report: TrialReport{
			Trial:         trial,
			Status:        status,
			Iterations:    10,
			LogLikelihood: ll,
		},
		Labels: &Labels{},
	}
}

func TestSelectBestPicksMaximum(t *testing.T) {
	results := []*TrialResult{
		syntheticResult(0, StatusConverged, -120),
		syntheticResult(1, StatusConverged, -80.5),
		syntheticResult(2, StatusIterationCap, -95),
		syntheticResult(3, StatusConverged, -101),
	}

	best, err := SelectBest(results, false)
	require.NoError(t, err)
	assert.Equal(t, 1, best)

	for _, r := range results {
		assert.GreaterOrEqual(t, results[best].Report.LogLikelihood, r.Report.LogLikelihood)
	}
}

func TestSelectBestTieKeepsFirst(t *testing.T) {
	results := []*TrialResult{
		syntheticResult(0, StatusConverged, -200),
		syntheticResult(1, StatusConverged, -50),
		syntheticResult(2, StatusConverged, -50),
	}

	best, err := SelectBest(results, false)
	require.NoError(t, err)
	assert.Equal(t, 1, best)
}

func TestSelectBestEligibility(t *testing.T) {
	capped := syntheticResult(0, StatusIterationCap, -10)
	deadline := syntheticResult(1, StatusDeadline, -5)
	converged := syntheticResult(2, StatusConverged, -30)
	cancelled := syntheticResult(3, StatusCancelled, -1)
	noIterations := syntheticResult(4, StatusConverged, 0)
	noIterations.Report.Iterations = 0
	results := []*TrialResult{capped, deadline, converged, cancelled, noIterations, nil}

	t.Run("non-converged kept", func(t *testing.T) {
		best, err := SelectBest(results, false)
		require.NoError(t, err)
		assert.Equal(t, 1, best)
	})

	t.Run("non-converged discarded", func(t *testing.T) {
		best, err := SelectBest(results, true)
		require.NoError(t, err)
		assert.Equal(t, 2, best)
	})
}

func TestSelectBestNoUsableTrial(t *testing.T) {
	cause := &ModelStateError{From: 0, To: 1}
	aborted := &TrialResult{Report: TrialReport{Status: StatusAborted, Err: cause}}
	capped := syntheticResult(1, StatusIterationCap, -1)

	_, err := SelectBest([]*TrialResult{aborted, capped}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoUsableTrial)
	assert.ErrorIs(t, err, ErrInvalidModelState)
}

func TestRunTrialsRespectsWorkerLimit(t *testing.T) {
	var running, peak atomic.Int32
	var mu sync.Mutex
	seen := map[int]bool{}

	results := RunTrials(context.Background(), 12, 3, func(ctx context.Context, trial int) *TrialResult {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		mu.Lock()
		seen[trial] = true
		mu.Unlock()
		return syntheticResult(trial, StatusConverged, float64(-trial))
	})

	require.Len(t, results, 12)
	for i, r := range results {
		assert.Equal(t, i, r.Report.Trial)
	}
	assert.Len(t, seen, 12)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func testParams(k int) trialParams {
	return trialParams{
		numCommunities: k,
		epsilon:        1e-6,
		maxIterations:  500,
		logger:         zerolog.Nop(),
	}
}

func TestRunTrialSingleEdge(t *testing.T) {
	g := mustGraph(t, 2, [3]int{0, 1, 1})
	p := testParams(1)
	p.epsilon = 1.0

	r := runTrial(context.Background(), g, p, 0, rand.NewPCG(1, 0))
	require.NoError(t, r.Report.Err)
	assert.Equal(t, StatusConverged, r.Report.Status)
	assert.LessOrEqual(t, r.Report.Iterations, 2)

	// one update maps any positive start to theta = 1/sqrt(2) on both ends
	assert.InDelta(t, 1/math.Sqrt2, r.Theta.At(0, 0), 1e-12)
	assert.InDelta(t, 1/math.Sqrt2, r.Theta.At(1, 0), 1e-12)
	assert.InDelta(t, 2*math.Log(0.5)-1, r.Report.LogLikelihood, 1e-12)
	assert.Equal(t, []int{0, 0}, r.Labels.Slice())
	assert.Equal(t, 0, r.Report.Degenerate.DegenerateEdges)
}

func TestRunTrialIterationCap(t *testing.T) {
	g := squareWithDiagonal(t)
	p := testParams(2)
	p.epsilon = 1e-300
	p.maxIterations = 3

	r := runTrial(context.Background(), g, p, 0, rand.NewPCG(5, 0))
	assert.Equal(t, StatusIterationCap, r.Report.Status)
	assert.Equal(t, 3, r.Report.Iterations)
	assert.NotNil(t, r.Labels)
	assert.True(t, r.Eligible(false))
	assert.False(t, r.Eligible(true))
}

func TestRunTrialReportsProgress(t *testing.T) {
	g := squareWithDiagonal(t)
	p := testParams(2)
	var iterations []int
	p.progress = func(trial, iteration int, ll, delta float64) {
		assert.Equal(t, 4, trial)
		iterations = append(iterations, iteration)
	}

	r := runTrial(context.Background(), g, p, 4, rand.NewPCG(5, 4))
	require.NotEmpty(t, iterations)
	assert.Equal(t, r.Report.Iterations, iterations[len(iterations)-1])
	for i, it := range iterations {
		assert.Equal(t, i+1, it)
	}
}

func TestRunTrialCancelled(t *testing.T) {
	g := squareWithDiagonal(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := testParams(2)
	p.epsilon = 1e-300
	p.progress = func(trial, iteration int, ll, delta float64) {
		if iteration == 2 {
			cancel()
		}
	}

	r := runTrial(ctx, g, p, 0, rand.NewPCG(9, 0))
	assert.Equal(t, StatusCancelled, r.Report.Status)
	assert.Equal(t, 2, r.Report.Iterations)
	assert.True(t, errors.Is(r.Report.Err, context.Canceled))
	assert.False(t, r.Eligible(false))
}

func TestRunTrialAbortsOnUndefinedLikelihood(t *testing.T) {
	// an all-zero start makes the initial likelihood undefined
	g := mustGraph(t, 2, [3]int{0, 1, 1})
	r := runTrial(context.Background(), g, testParams(1), 0, zeroSource{})

	assert.Equal(t, StatusAborted, r.Report.Status)
	assert.ErrorIs(t, r.Report.Err, ErrInvalidModelState)
	assert.Nil(t, r.Labels)
	assert.False(t, r.Eligible(false))
}

// zeroSource always yields zero, so every uniform draw is 0.
type zeroSource struct{}

func (zeroSource) Uint64() uint64 { return 0 }
