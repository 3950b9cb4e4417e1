package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roomsage/onboarder/internal/logging"
	"github.com/roomsage/onboarder/internal/onboarding"
	"github.com/roomsage/onboarder/internal/scheduler"
)

// JobService is the scheduler surface the HTTP layer depends on.
type JobService interface {
	Submit(ctx context.Context, req scheduler.SubmitRequest) (string, error)
	Status(ctx context.Context, id string) (onboarding.JobSnapshot, error)
	Events(ctx context.Context, id string, sinceSeq int64) ([]onboarding.ProgressEvent, error)
	Result(ctx context.Context, id string) (onboarding.MergedRecord, error)
	Comparison(ctx context.Context, id string) (onboarding.ComparisonReport, error)
	Cancel(ctx context.Context, id string) error
	Retry(ctx context.Context, id string) error
}

// Server wires HTTP handlers to the scheduler.
type Server struct {
	router  chi.Router
	jobs    JobService
	logger  *zap.Logger
	metrics http.Handler
}

// NewServer constructs a Server with middleware and routes. A nil registry
// serves the default Prometheus gatherer on /metrics.
func NewServer(jobs JobService, registry *prometheus.Registry, logger *zap.Logger) *Server {
	s := &Server{
		jobs:   jobs,
		logger: logging.OrNop(logger),
	}
	if registry != nil {
		s.metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	} else {
		s.metrics = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/metrics", s.metrics.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.submitJob)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/status", s.getStatus)
				r.Get("/events", s.getEvents)
				r.Get("/result", s.getResult)
				r.Get("/comparison", s.getComparison)
				r.Get("/export", s.exportResult)
				r.Post("/cancel", s.cancelJob)
				r.Post("/retry", s.retryJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
