package bkn

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

// TrialStatus describes how a trial's iteration loop ended.
type TrialStatus string

const (
	StatusConverged    TrialStatus = "converged"     // |delta| < epsilon
	StatusIterationCap TrialStatus = "iteration_cap" // max_iterations reached first
	StatusDeadline     TrialStatus = "deadline"      // trial or run deadline expired
	StatusCancelled    TrialStatus = "cancelled"
	StatusAborted      TrialStatus = "aborted" // invalid model state
)

// ProgressFunc observes every completed iteration. It must not mutate
// engine state and has no effect on the numeric result.
type ProgressFunc func(trial, iteration int, logLikelihood, delta float64)

// TrialReport summarizes one EM run.
type TrialReport struct {
	Trial                int           `json:"trial"`
	Status               TrialStatus   `json:"status"`
	Iterations           int           `json:"iterations"`
	InitialLogLikelihood float64       `json:"initial_log_likelihood"`
	LogLikelihood        float64       `json:"log_likelihood"`
	Delta                float64       `json:"delta"`
	Degenerate           UpdateStats   `json:"degenerate"`
	Duration             time.Duration `json:"duration"`
	Agreement            float64       `json:"agreement"` // NMI against the selected trial's labels
	Err                  error         `json:"-"`
	Error                string        `json:"error,omitempty"`
}

// TrialResult is the outcome of one trial: the report plus, when the trial
// produced usable state, its labels and final affinities.
type TrialResult struct {
	Report TrialReport
	Labels *Labels
	Theta  *mat.Dense
}

// Eligible reports whether the trial may be selected.
func (r *TrialResult) Eligible(discardNonConverged bool) bool {
	if r == nil || r.Labels == nil || r.Report.Iterations == 0 {
		return false
	}
	switch r.Report.Status {
	case StatusConverged:
		return true
	case StatusIterationCap, StatusDeadline:
		return !discardNonConverged
	default:
		return false
	}
}

type trialParams struct {
	numCommunities int
	epsilon        float64
	maxIterations  int
	verbose        bool
	progressLog    bool
	progress       ProgressFunc
	logger         zerolog.Logger
}

// runTrial runs one EM trial from a random initialization drawn from src.
func runTrial(ctx context.Context, g *Graph, p trialParams, trial int, src rand.Source) *TrialResult {
	start := time.Now()
	logger := p.logger.With().Int("trial", trial).Logger()
	result := &TrialResult{Report: TrialReport{Trial: trial}}

	finish := func(status TrialStatus, err error) *TrialResult {
		result.Report.Status = status
		result.Report.Duration = time.Since(start)
		if err != nil {
			result.Report.Err = err
			result.Report.Error = err.Error()
		}
		return result
	}

	if err := ctx.Err(); err != nil {
		return finish(contextStatus(err), err)
	}

	model := NewModel(g, p.numCommunities).WithDiagnostics(logger, p.verbose)
	model.Randomize(src)

	ll, err := model.LogLikelihood()
	if err != nil {
		logger.Error().Err(err).Msg("Initial log-likelihood undefined, aborting trial")
		return finish(StatusAborted, fmt.Errorf("trial %d: initial log-likelihood: %w", trial, err))
	}
	result.Report.InitialLogLikelihood = ll
	result.Report.LogLikelihood = ll

	ctrl := NewController(p.epsilon, p.maxIterations, ll)
	for ctrl.Continue() {
		if err := ctx.Err(); err != nil {
			result.Report.Iterations = ctrl.Iteration()
			status := contextStatus(err)
			if status == StatusDeadline && ctrl.Iteration() > 0 {
				result.Labels = model.Labels()
				result.Theta = mat.DenseCopyOf(model.Theta())
				logger.Warn().
					Int("iterations", ctrl.Iteration()).
					Float64("log_likelihood", ctrl.LogLikelihood()).
					Msg("Deadline reached before convergence")
			}
			return finish(status, err)
		}

		stats := model.Step()
		result.Report.Degenerate.DegenerateEdges += stats.DegenerateEdges
		result.Report.Degenerate.DegenerateCommunities += stats.DegenerateCommunities
		result.Report.Degenerate.ZeroAffinities += stats.ZeroAffinities

		newLL, err := model.LogLikelihood()
		if err != nil {
			result.Report.Iterations = ctrl.Iteration() + 1
			logger.Error().
				Err(err).
				Int("iteration", ctrl.Iteration()+1).
				Msg("Log-likelihood undefined, aborting trial")
			return finish(StatusAborted, fmt.Errorf("trial %d iteration %d: %w", trial, ctrl.Iteration()+1, err))
		}
		delta := ctrl.Observe(newLL)
		result.Report.LogLikelihood = newLL
		result.Report.Delta = delta
		result.Report.Iterations = ctrl.Iteration()

		if p.progressLog {
			logger.Debug().
				Int("iteration", ctrl.Iteration()).
				Float64("log_likelihood", newLL).
				Float64("delta", delta).
				Msg("EM iteration")
		}
		if p.progress != nil {
			p.progress(trial, ctrl.Iteration(), newLL, delta)
		}
	}

	result.Labels = model.Labels()
	result.Theta = mat.DenseCopyOf(model.Theta())

	if !ctrl.Converged() {
		logger.Warn().
			Int("iterations", ctrl.Iteration()).
			Float64("delta", ctrl.Delta()).
			Msg("Iteration cap reached before convergence")
		return finish(StatusIterationCap, nil)
	}

	logger.Info().
		Int("iterations", ctrl.Iteration()).
		Float64("log_likelihood", ctrl.LogLikelihood()).
		Msg("Trial converged")
	return finish(StatusConverged, nil)
}

func contextStatus(err error) TrialStatus {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusDeadline
	}
	return StatusCancelled
}
