package models

import (
	"time"

	"github.com/gilchrisn/readership-communities/pkg/bkn"
	"github.com/gilchrisn/readership-communities/pkg/export"
	"github.com/gilchrisn/readership-communities/pkg/readership"
)

// EdgeInput is one undirected link of a submitted graph. Listing the same
// link again adds to its multiplicity.
type EdgeInput struct {
	From   int `json:"from" validate:"min=0"`
	To     int `json:"to" validate:"min=0,nefield=From"`
	Weight int `json:"weight,omitempty" validate:"omitempty,min=1"`
}

// DetectionParameters overrides the engine defaults for one job.
type DetectionParameters struct {
	NumCommunities      int      `json:"numCommunities" validate:"required,min=1,max=1024"`
	NumTrials           int      `json:"numTrials,omitempty" validate:"omitempty,min=1,max=1000"`
	Epsilon             *float64 `json:"epsilon,omitempty" validate:"omitempty,gt=0"`
	MaxIterations       *int     `json:"maxIterations,omitempty" validate:"omitempty,min=1"`
	Seed                *int64   `json:"seed,omitempty" validate:"omitempty,min=0"`
	DiscardNonConverged bool     `json:"discardNonConverged,omitempty"`
	Verbose             bool     `json:"verbose,omitempty"`
}

// DetectionRequest carries either an explicit edge list over NumVertices
// vertices or person-to-items interactions from which the co-interaction
// graph is built.
type DetectionRequest struct {
	Name         string              `json:"name,omitempty" validate:"max=200"`
	NumVertices  int                 `json:"numVertices,omitempty" validate:"omitempty,min=1"`
	Edges        []EdgeInput         `json:"edges,omitempty" validate:"required_without=Interactions,dive"`
	Interactions map[string][]string `json:"interactions,omitempty" validate:"required_without=Edges"`
	ItemLabels   map[string]string   `json:"itemLabels,omitempty"`
	Parameters   DetectionParameters `json:"parameters"`
}

// Job represents a community detection job
type Job struct {
	ID          string              `json:"id"`
	Name        string              `json:"name,omitempty"`
	Parameters  DetectionParameters `json:"parameters"`
	Status      JobStatus           `json:"status"`
	Progress    JobProgress         `json:"progress"`
	Summary     *JobSummary         `json:"summary,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt"`
	StartedAt   *time.Time          `json:"startedAt,omitempty"`
	CompletedAt *time.Time          `json:"completedAt,omitempty"`
}

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

type JobProgress struct {
	Percentage int    `json:"percentage"`
	Message    string `json:"message"`
}

// JobSummary is the compact outcome stored on a completed job.
type JobSummary struct {
	LogLikelihood    float64           `json:"logLikelihood"`
	BestTrial        int               `json:"bestTrial"`
	NumCommunities   int               `json:"numCommunities"`
	CommunitySizes   []int             `json:"communitySizes"`
	NumVertices      int               `json:"numVertices"`
	NumEdges         int               `json:"numEdges"`
	Trials           []bkn.TrialReport `json:"trials"`
	ProcessingTimeMS int64             `json:"processingTimeMS"`
}

// DetectionResult is the full output of a completed job.
type DetectionResult struct {
	JobID       string                    `json:"jobId"`
	Items       []string                  `json:"items,omitempty"`
	Graph       readership.Summary        `json:"graph"`
	Result      *bkn.Result               `json:"result"`
	Communities []export.CommunitySummary `json:"communities"`
}

// API Response types
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type DetectionResponse struct {
	JobID string `json:"jobId"`
	Job   Job    `json:"job"`
}
