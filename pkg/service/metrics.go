package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
)

// Metrics holds the prometheus collectors of the detection service.
type Metrics struct {
	registry *prometheus.Registry

	JobsTotal       *prometheus.CounterVec
	JobDuration     prometheus.Histogram
	JobsInFlight    prometheus.Gauge
	TrialsTotal     *prometheus.CounterVec
	TrialIterations prometheus.Histogram
	LogLikelihood   prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.JobsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "bkn_jobs_total",
			Help: "Total number of detection jobs by final status",
		},
		[]string{"status"},
	)
	m.JobDuration = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bkn_job_duration_seconds",
			Help:    "Wall time of detection jobs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)
	m.JobsInFlight = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "bkn_jobs_in_flight",
			Help: "Detection jobs currently running",
		},
	)
	m.TrialsTotal = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "bkn_trials_total",
			Help: "EM trials by outcome",
		},
		[]string{"status"},
	)
	m.TrialIterations = promauto.With(reg).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bkn_trial_iterations",
			Help:    "EM iterations per trial",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
	m.LogLikelihood = promauto.With(reg).NewGauge(
		prometheus.GaugeOpts{
			Name: "bkn_last_log_likelihood",
			Help: "Selected log-likelihood of the most recently completed job",
		},
	)
	m.HTTPRequests = promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "bkn_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPDuration = promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bkn_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordJob records a finished job.
func (m *Metrics) RecordJob(status string, duration time.Duration) {
	m.JobsTotal.WithLabelValues(status).Inc()
	m.JobDuration.Observe(duration.Seconds())
}

// RecordResult records per-trial outcomes of a completed run.
func (m *Metrics) RecordResult(result *bkn.Result) {
	for _, t := range result.Trials {
		m.TrialsTotal.WithLabelValues(string(t.Status)).Inc()
		m.TrialIterations.Observe(float64(t.Iterations))
	}
	m.LogLikelihood.Set(result.LogLikelihood)
}

// RecordHTTPRequest records an HTTP request with its duration
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
