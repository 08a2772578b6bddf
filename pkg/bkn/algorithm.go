package bkn

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Result is the selected trial of a multi-trial run together with the
// reports of every trial. Multiple restarts reduce the chance of ending in
// a poor local optimum; they do not guarantee the global maximum.
type Result struct {
	LogLikelihood  float64       `json:"log_likelihood"`
	Labels         *Labels       `json:"labels"`
	Theta          *mat.Dense    `json:"-"`
	BestTrial      int           `json:"best_trial"`
	NumCommunities int           `json:"num_communities"`
	NumVertices    int           `json:"num_vertices"`
	NumEdges       int           `json:"num_edges"`
	Seed           int64         `json:"seed"`
	Trials         []TrialReport `json:"trials"`
	RuntimeMS      int64         `json:"runtime_ms"`
}

// TrialFunc runs trial number trial. Implementations must be safe for
// concurrent use across distinct trial numbers.
type TrialFunc func(ctx context.Context, trial int) *TrialResult

// Engine runs the multi-trial EM procedure.
type Engine struct {
	config   *Config
	logger   zerolog.Logger
	progress ProgressFunc
}

// NewEngine validates config and returns an engine.
func NewEngine(config *Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config: config,
		logger: config.CreateLogger(),
	}, nil
}

// WithLogger replaces the logger created from the configuration.
func (e *Engine) WithLogger(logger zerolog.Logger) *Engine {
	e.logger = logger
	return e
}

// WithProgress registers a per-iteration observer.
func (e *Engine) WithProgress(fn ProgressFunc) *Engine {
	e.progress = fn
	return e
}

// Detect runs num_trials independent trials on g and returns the one with
// the highest final log-likelihood. Ties keep the lowest trial number.
func (e *Engine) Detect(ctx context.Context, g *Graph) (*Result, error) {
	if g == nil || g.NumEdges() == 0 {
		return nil, ErrEmptyGraph
	}
	startTime := time.Now()

	seed := e.config.RandomSeed()
	if seed < 0 {
		seed = rand.Int64()
	}

	params := trialParams{
		numCommunities: e.config.NumCommunities(),
		epsilon:        e.config.Epsilon(),
		maxIterations:  e.config.MaxIterations(),
		verbose:        e.config.Verbose(),
		progressLog:    e.config.EnableProgress(),
		progress:       e.progress,
		logger:         e.logger,
	}
	timeout := e.config.TrialTimeout()

	e.logger.Info().
		Int("vertices", g.NumVertices()).
		Int("edges", g.NumEdges()/2).
		Int("isolated", g.NumIsolated()).
		Int("communities", params.numCommunities).
		Int("trials", e.config.NumTrials()).
		Int64("seed", seed).
		Msg("Starting community detection")

	trialFn := func(ctx context.Context, trial int) *TrialResult {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		src := rand.NewPCG(uint64(seed), uint64(trial))
		return runTrial(ctx, g, params, trial, src)
	}

	workers := 1
	if e.config.Parallel() {
		workers = e.config.NumWorkers()
	}
	results := RunTrials(ctx, e.config.NumTrials(), workers, trialFn)

	if err := ctx.Err(); err != nil && errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("community detection cancelled: %w", err)
	}

	best, err := SelectBest(results, e.config.DiscardNonConverged())
	if err != nil {
		e.logger.Error().Err(err).Msg("No trial produced a usable result")
		return nil, err
	}

	result := &Result{
		LogLikelihood:  results[best].Report.LogLikelihood,
		Labels:         results[best].Labels,
		Theta:          results[best].Theta,
		BestTrial:      best,
		NumCommunities: params.numCommunities,
		NumVertices:    g.NumVertices(),
		NumEdges:       g.NumEdges(),
		Seed:           seed,
		Trials:         make([]TrialReport, len(results)),
	}
	reference := result.Labels.Slice()
	for i, r := range results {
		result.Trials[i] = r.Report
		if r.Labels == nil {
			continue
		}
		nmi, err := NormalizedMutualInfo(reference, r.Labels.community)
		if err == nil {
			result.Trials[i].Agreement = nmi
		}
	}
	result.RuntimeMS = time.Since(startTime).Milliseconds()

	e.logger.Info().
		Int("trials", len(results)).
		Int("best_trial", best).
		Float64("max_log_likelihood", result.LogLikelihood).
		Ints("community_sizes", result.Labels.Counts()).
		Int64("runtime_ms", result.RuntimeMS).
		Msg("Community detection completed")

	return result, nil
}

// RunTrials runs numTrials trials on at most workers goroutines and returns
// their results indexed by trial number. Trials share no mutable state.
func RunTrials(ctx context.Context, numTrials, workers int, fn TrialFunc) []*TrialResult {
	if workers < 1 {
		workers = 1
	}
	results := make([]*TrialResult, numTrials)

	var group errgroup.Group
	group.SetLimit(workers)
	for trial := 0; trial < numTrials; trial++ {
		group.Go(func() error {
			results[trial] = fn(ctx, trial)
			return nil
		})
	}
	_ = group.Wait()

	return results
}

// SelectBest returns the index of the eligible result with the strictly
// greatest log-likelihood, keeping the first one seen on ties.
func SelectBest(results []*TrialResult, discardNonConverged bool) (int, error) {
	best := -1
	var errs []error
	for i, r := range results {
		if !r.Eligible(discardNonConverged) {
			if r != nil && r.Report.Err != nil {
				errs = append(errs, r.Report.Err)
			} else if r != nil {
				errs = append(errs, fmt.Errorf("trial %d: ineligible with status %s", i, r.Report.Status))
			}
			continue
		}
		if best < 0 || r.Report.LogLikelihood > results[best].Report.LogLikelihood {
			best = i
		}
	}
	if best < 0 {
		return -1, errors.Join(append([]error{ErrNoUsableTrial}, errs...)...)
	}
	return best, nil
}

// GetCommunities runs numTrials trials with k communities and default
// settings otherwise, returning only the selected label map.
func GetCommunities(ctx context.Context, g *Graph, k, numTrials int, verbose bool) (*Labels, error) {
	config := NewConfig()
	config.Set("algorithm.num_communities", k)
	config.Set("algorithm.num_trials", numTrials)
	config.Set("logging.verbose", verbose)

	engine, err := NewEngine(config)
	if err != nil {
		return nil, err
	}
	result, err := engine.Detect(ctx, g)
	if err != nil {
		return nil, err
	}
	return result.Labels, nil
}
