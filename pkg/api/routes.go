package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gilchrisn/readership-communities/pkg/service"
)

// SetupRoutes registers the detection API under /api/v1 and the metrics
// endpoint at /metrics.
func SetupRoutes(router *mux.Router, handlers *Handlers, metrics *service.Metrics) {
	// API version prefix
	api := router.PathPrefix("/api/v1").Subrouter()

	detections := api.PathPrefix("/detections").Subrouter()
	detections.HandleFunc("", handlers.StartDetection).Methods("POST")
	detections.HandleFunc("", handlers.ListDetections).Methods("GET")
	detections.HandleFunc("/{jobId}", handlers.GetDetection).Methods("GET")
	detections.HandleFunc("/{jobId}", handlers.CancelDetection).Methods("DELETE")
	detections.HandleFunc("/{jobId}/result", handlers.GetDetectionResult).Methods("GET")

	// Health check endpoint
	api.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})).Methods("GET")
}

// NewRouter builds the complete handler stack.
func NewRouter(jobService *service.JobService, maxRequestBytes int64) *mux.Router {
	router := mux.NewRouter()
	SetupRoutes(router, NewHandlers(jobService, maxRequestBytes), jobService.Metrics())

	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware(jobService.Metrics()))
	return router
}
