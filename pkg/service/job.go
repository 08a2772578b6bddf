package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
	"github.com/gilchrisn/readership-communities/pkg/export"
	"github.com/gilchrisn/readership-communities/pkg/models"
	"github.com/gilchrisn/readership-communities/pkg/readership"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrResultNotReady  = errors.New("result not available")
	ErrInvalidRequest  = errors.New("invalid detection request")
	ErrServiceShutdown = errors.New("job service is shut down")
)

// summaryTop bounds the vertices listed per community and in graph summaries.
const summaryTop = 10

// Options configures a JobService.
type Options struct {
	MaxWorkers      int
	JobTimeout      time.Duration
	CleanupInterval time.Duration
	ResultTTL       time.Duration
}

// DefaultOptions mirrors the server defaults.
func DefaultOptions() Options {
	return Options{
		MaxWorkers:      4,
		JobTimeout:      10 * time.Minute,
		CleanupInterval: 5 * time.Minute,
		ResultTTL:       time.Hour,
	}
}

// jobInput is the graph a queued job will run on.
type jobInput struct {
	graph *bkn.Graph
	names []string
}

// JobService handles background detection jobs
type JobService struct {
	jobs            map[string]*models.Job
	results         map[string]*models.DetectionResult
	cancels         map[string]context.CancelFunc
	workers         chan struct{}
	metrics         *Metrics
	mutex           sync.RWMutex
	jobTTL          time.Duration
	cleanupInterval time.Duration
	jobTimeout      time.Duration
	ctx             context.Context
	stop            context.CancelFunc
	wg              sync.WaitGroup
}

// NewJobService creates a job service and starts its cleanup loop.
// metrics may be nil.
func NewJobService(opts Options, metrics *Metrics) *JobService {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	ctx, stop := context.WithCancel(context.Background())
	service := &JobService{
		jobs:            make(map[string]*models.Job),
		results:         make(map[string]*models.DetectionResult),
		cancels:         make(map[string]context.CancelFunc),
		workers:         make(chan struct{}, opts.MaxWorkers),
		metrics:         metrics,
		jobTTL:          opts.ResultTTL,
		cleanupInterval: opts.CleanupInterval,
		jobTimeout:      opts.JobTimeout,
		ctx:             ctx,
		stop:            stop,
	}

	if service.cleanupInterval > 0 && service.jobTTL > 0 {
		service.wg.Add(1)
		go service.cleanupLoop()
	}

	return service
}

// Metrics returns the collectors the service records into.
func (s *JobService) Metrics() *Metrics { return s.metrics }

// Close cancels all running jobs and waits for them and the cleanup loop
// to return.
func (s *JobService) Close() {
	s.stop()
	s.wg.Wait()
}

// Submit validates req, builds its graph and queues a detection job.
func (s *JobService) Submit(req *models.DetectionRequest) (*models.Job, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, ErrServiceShutdown
	}
	if err := models.ValidateDetectionRequest(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	input, err := buildInput(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	jobID := uuid.New().String()
	now := time.Now()
	job := &models.Job{
		ID:         jobID,
		Name:       req.Name,
		Parameters: req.Parameters,
		Status:     models.JobStatusQueued,
		Progress: models.JobProgress{
			Percentage: 0,
			Message:    "Queued",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	var ctx context.Context
	var cancel context.CancelFunc
	if s.jobTimeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, s.jobTimeout)
	} else {
		ctx, cancel = context.WithCancel(s.ctx)
	}

	s.mutex.Lock()
	s.jobs[jobID] = job
	s.cancels[jobID] = cancel
	snapshot := *job
	s.mutex.Unlock()

	log.Info().
		Str("job_id", jobID).
		Int("vertices", input.graph.NumVertices()).
		Int("edges", input.graph.NumEdges()/2).
		Int("communities", req.Parameters.NumCommunities).
		Msg("Job submitted")

	s.wg.Add(1)
	go s.processJob(ctx, cancel, jobID, input)

	return &snapshot, nil
}

// buildInput turns the request into an engine graph and vertex names.
func buildInput(req *models.DetectionRequest) (*jobInput, error) {
	if len(req.Interactions) > 0 {
		catalog, g, err := readership.BuildCoInteraction(req.Interactions)
		if err != nil {
			return nil, err
		}
		if len(req.ItemLabels) > 0 {
			catalog = catalog.Labelled(req.ItemLabels)
		}
		return &jobInput{graph: g, names: catalog.Items}, nil
	}

	builder := bkn.NewBuilder(req.NumVertices)
	for _, e := range req.Edges {
		weight := e.Weight
		if weight == 0 {
			weight = 1
		}
		if err := builder.AddLink(e.From, e.To, weight); err != nil {
			return nil, err
		}
	}
	g, err := builder.Build()
	if err != nil {
		return nil, err
	}
	return &jobInput{graph: g}, nil
}

// Get retrieves a snapshot of a job by ID
func (s *JobService) Get(jobID string) (*models.Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	snapshot := *job
	return &snapshot, nil
}

// GetResult retrieves the detection result of a completed job
func (s *JobService) GetResult(jobID string) (*models.DetectionResult, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	result, exists := s.results[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: job %s is %s", ErrResultNotReady, jobID, job.Status)
	}

	return result, nil
}

// List returns snapshots of all jobs, oldest first.
func (s *JobService) List() []models.Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	jobs := make([]models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(a, b int) bool {
		return jobs[a].CreatedAt.Before(jobs[b].CreatedAt)
	})
	return jobs
}

// Cancel stops a queued or running job. Cancelling a finished job is a no-op.
func (s *JobService) Cancel(jobID string) (*models.Job, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if !job.Status.Terminal() {
		if cancel, ok := s.cancels[jobID]; ok {
			cancel()
			delete(s.cancels, jobID)
		}
		now := time.Now()
		job.Status = models.JobStatusCancelled
		job.Progress.Message = "Cancelled"
		job.CompletedAt = &now
		job.UpdatedAt = now

		log.Info().
			Str("job_id", jobID).
			Msg("Job cancelled")
	}

	snapshot := *job
	return &snapshot, nil
}

// processJob processes a job in the background
func (s *JobService) processJob(ctx context.Context, cancel context.CancelFunc, jobID string, input *jobInput) {
	defer s.wg.Done()
	defer cancel()

	// Acquire worker slot
	select {
	case s.workers <- struct{}{}:
		defer func() { <-s.workers }()
	case <-ctx.Done():
		s.finishCancelled(jobID, ctx.Err())
		return
	}

	s.mutex.RLock()
	job, exists := s.jobs[jobID]
	var params models.DetectionParameters
	if exists {
		params = job.Parameters
	}
	s.mutex.RUnlock()

	if !exists {
		log.Error().Str("job_id", jobID).Msg("Job not found during processing")
		return
	}

	startTime := time.Now()
	if !s.updateJobStatusWithStartTime(jobID, models.JobStatusRunning, 0, "Starting...", &startTime) {
		s.finishCancelled(jobID, context.Canceled)
		return
	}
	s.metrics.JobsInFlight.Inc()
	defer s.metrics.JobsInFlight.Dec()

	log.Info().
		Str("job_id", jobID).
		Int("communities", params.NumCommunities).
		Msg("Job processing started")

	config := detectionConfig(params)
	engine, err := bkn.NewEngine(config)
	if err != nil {
		s.failJob(jobID, fmt.Errorf("invalid parameters: %w", err), time.Since(startTime))
		return
	}

	numTrials := config.NumTrials()
	var started atomic.Int64
	engine.WithLogger(log.Logger.With().Str("job_id", jobID).Logger()).
		WithProgress(func(trial, iteration int, logLikelihood, delta float64) {
			if iteration == 1 {
				n := started.Add(1)
				s.updateJobStatus(jobID, models.JobStatusRunning,
					int(90*n/int64(numTrials)),
					fmt.Sprintf("Running trial %d of %d", n, numTrials))
			}
		})

	result, err := engine.Detect(ctx, input.graph)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			s.finishCancelled(jobID, err)
			return
		}
		s.failJob(jobID, fmt.Errorf("community detection failed: %w", err), time.Since(startTime))
		return
	}

	s.updateJobStatus(jobID, models.JobStatusRunning, 95, "Summarizing communities")
	detection := &models.DetectionResult{
		JobID:       jobID,
		Items:       input.names,
		Graph:       readership.Summarize(input.graph, input.names, summaryTop),
		Result:      result,
		Communities: export.CommunitySummaries(input.graph, result.Labels, input.names, summaryTop),
	}

	s.completeJob(jobID, detection, time.Since(startTime))
}

// detectionConfig overlays the request parameters on the engine defaults.
func detectionConfig(params models.DetectionParameters) *bkn.Config {
	config := bkn.NewConfig()
	config.Set("algorithm.num_communities", params.NumCommunities)
	if params.NumTrials > 0 {
		config.Set("algorithm.num_trials", params.NumTrials)
	}
	if params.Epsilon != nil {
		config.Set("algorithm.epsilon", *params.Epsilon)
	}
	if params.MaxIterations != nil {
		config.Set("algorithm.max_iterations", *params.MaxIterations)
	}
	if params.Seed != nil {
		config.Set("algorithm.random_seed", *params.Seed)
	}
	config.Set("algorithm.discard_non_converged", params.DiscardNonConverged)
	config.Set("logging.verbose", params.Verbose)
	return config
}

// updateJobStatus updates progress of a job that is still running. It
// reports false once the job has reached a terminal status.
func (s *JobService) updateJobStatus(jobID string, status models.JobStatus, percentage int, message string) bool {
	return s.updateJobStatusWithStartTime(jobID, status, percentage, message, nil)
}

// updateJobStatusWithStartTime updates job progress and sets start time
func (s *JobService) updateJobStatusWithStartTime(jobID string, status models.JobStatus, percentage int, message string, startTime *time.Time) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Terminal() {
		return false
	}

	job.Status = status
	job.Progress.Percentage = percentage
	job.Progress.Message = message
	job.UpdatedAt = time.Now()
	if startTime != nil {
		job.StartedAt = startTime
	}

	log.Debug().
		Str("job_id", jobID).
		Str("status", string(status)).
		Int("percentage", percentage).
		Str("message", message).
		Msg("Job status updated")
	return true
}

// completeJob marks a job as completed with results
func (s *JobService) completeJob(jobID string, detection *models.DetectionResult, elapsed time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Terminal() {
		return
	}
	delete(s.cancels, jobID)

	result := detection.Result
	job.Status = models.JobStatusCompleted
	job.Progress.Percentage = 100
	job.Progress.Message = "Complete"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now

	job.Summary = &models.JobSummary{
		LogLikelihood:    result.LogLikelihood,
		BestTrial:        result.BestTrial,
		NumCommunities:   result.NumCommunities,
		CommunitySizes:   result.Labels.Counts(),
		NumVertices:      result.NumVertices,
		NumEdges:         result.NumEdges / 2,
		Trials:           result.Trials,
		ProcessingTimeMS: elapsed.Milliseconds(),
	}

	s.results[jobID] = detection
	s.metrics.RecordJob(string(models.JobStatusCompleted), elapsed)
	s.metrics.RecordResult(result)

	log.Info().
		Str("job_id", jobID).
		Float64("log_likelihood", result.LogLikelihood).
		Int("best_trial", result.BestTrial).
		Int64("processing_time_ms", elapsed.Milliseconds()).
		Msg("Job completed successfully")
}

// failJob marks a job as failed
func (s *JobService) failJob(jobID string, err error, elapsed time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Terminal() {
		return
	}
	delete(s.cancels, jobID)

	job.Status = models.JobStatusFailed
	job.Error = err.Error()
	job.Progress.Message = "Failed"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now
	s.metrics.RecordJob(string(models.JobStatusFailed), elapsed)

	log.Error().
		Str("job_id", jobID).
		Err(err).
		Msg("Job failed")
}

// finishCancelled records a job stopped by Cancel or by service shutdown.
func (s *JobService) finishCancelled(jobID string, cause error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return
	}
	delete(s.cancels, jobID)
	s.metrics.RecordJob(string(models.JobStatusCancelled), 0)
	if job.Status.Terminal() {
		return
	}

	now := time.Now()
	job.Status = models.JobStatusCancelled
	job.Progress.Message = "Cancelled"
	job.Error = cause.Error()
	job.CompletedAt = &now
	job.UpdatedAt = now

	log.Info().
		Str("job_id", jobID).
		Err(cause).
		Msg("Job stopped")
}

// cleanupLoop periodically cleans up old jobs and results
func (s *JobService) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now())
		case <-s.ctx.Done():
			return
		}
	}
}

// cleanup removes finished jobs last updated before now minus the TTL.
func (s *JobService) cleanup(now time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := now.Add(-s.jobTTL)
	cleaned := 0

	for jobID, job := range s.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, jobID)
			delete(s.results, jobID)
			cleaned++
		}
	}

	if cleaned > 0 {
		log.Info().
			Int("cleaned_jobs", cleaned).
			Msg("Job cleanup completed")
	}
	return cleaned
}
