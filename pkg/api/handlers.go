package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/readership-communities/pkg/models"
	"github.com/gilchrisn/readership-communities/pkg/service"
)

// Handlers contains HTTP request handlers
type Handlers struct {
	jobService      *service.JobService
	maxRequestBytes int64
	startedAt       time.Time
}

// NewHandlers creates new API handlers. Request bodies larger than
// maxRequestBytes are rejected.
func NewHandlers(jobService *service.JobService, maxRequestBytes int64) *Handlers {
	return &Handlers{
		jobService:      jobService,
		maxRequestBytes: maxRequestBytes,
		startedAt:       time.Now(),
	}
}

// StartDetection handles POST /detections
func (h *Handlers) StartDetection(w http.ResponseWriter, r *http.Request) {
	if h.maxRequestBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestBytes)
	}

	var req models.DetectionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteErrorResponse(w, http.StatusRequestEntityTooLarge, "Request body too large", err)
			return
		}
		WriteErrorResponse(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	job, err := h.jobService.Submit(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			WriteErrorResponse(w, http.StatusBadRequest, "Invalid detection request", err)
		case errors.Is(err, service.ErrServiceShutdown):
			WriteErrorResponse(w, http.StatusServiceUnavailable, "Service is shutting down", err)
		default:
			log.Error().Err(err).Msg("Failed to submit detection job")
			WriteErrorResponse(w, http.StatusInternalServerError, "Failed to start detection", err)
		}
		return
	}

	WriteSuccessResponse(w, http.StatusAccepted, "Detection started", models.DetectionResponse{
		JobID: job.ID,
		Job:   *job,
	})
}

// ListDetections handles GET /detections
func (h *Handlers) ListDetections(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, http.StatusOK, "Jobs retrieved", h.jobService.List())
}

// GetDetection handles GET /detections/{jobId}
func (h *Handlers) GetDetection(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.jobService.Get(jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteSuccessResponse(w, http.StatusOK, "Job retrieved", job)
}

// GetDetectionResult handles GET /detections/{jobId}/result
func (h *Handlers) GetDetectionResult(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	result, err := h.jobService.GetResult(jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteSuccessResponse(w, http.StatusOK, "Result retrieved", result)
}

// CancelDetection handles DELETE /detections/{jobId}
func (h *Handlers) CancelDetection(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.jobService.Cancel(jobID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteSuccessResponse(w, http.StatusOK, "Job cancelled", job)
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	WriteSuccessResponse(w, http.StatusOK, "Service is healthy", map[string]interface{}{
		"status":    "ok",
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"timestamp": time.Now().UTC(),
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrJobNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "Job not found", err)
	case errors.Is(err, service.ErrResultNotReady):
		WriteErrorResponse(w, http.StatusConflict, "Result not available", err)
	default:
		WriteErrorResponse(w, http.StatusInternalServerError, "Internal server error", err)
	}
}
