package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/roomsage/onboarder/internal/export"
	"github.com/roomsage/onboarder/internal/onboarding"
	"github.com/roomsage/onboarder/internal/scheduler"
)

type submitRequest struct {
	SourceURL     string `json:"source_url"`
	CompetitorURL string `json:"competitor_url"`
	Priority      string `json:"priority"`
	Strategy      string `json:"strategy"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := s.jobs.Submit(r.Context(), scheduler.SubmitRequest{
		SourceURL:     req.SourceURL,
		CompetitorURL: req.CompetitorURL,
		Priority:      onboarding.Priority(req.Priority),
		Strategy:      onboarding.Strategy(req.Strategy),
	})
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.jobs.Status(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	since := int64(0)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "since must be a non-negative integer")
			return
		}
		since = parsed
	}
	events, err := s.jobs.Events(r.Context(), chi.URLParam(r, "job_id"), since)
	if err != nil {
		s.handleError(w, err)
		return
	}
	if events == nil {
		events = []onboarding.ProgressEvent{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	record, err := s.jobs.Result(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) getComparison(w http.ResponseWriter, r *http.Request) {
	report, err := s.jobs.Comparison(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) exportResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatJSON
	}
	if format != export.FormatJSON && format != export.FormatCSV {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
		return
	}

	record, err := s.jobs.Result(r.Context(), jobID)
	if err != nil {
		s.handleError(w, err)
		return
	}

	switch format {
	case export.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", jobID))
		err = export.WriteCSV(w, record)
	default:
		w.Header().Set("Content-Type", "application/json")
		err = export.WriteJSON(w, record)
	}
	if err != nil {
		s.logger.Error("write export", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.jobs.Cancel(r.Context(), jobID); err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) retryJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if err := s.jobs.Retry(r.Context(), jobID); err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

// handleError maps domain errors to status codes. Unexpected errors log with
// detail and return a generic message.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, onboarding.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, onboarding.ErrNotReady):
		s.writeError(w, http.StatusConflict, "job result is not ready")
	case errors.Is(err, onboarding.ErrJobExists):
		s.writeError(w, http.StatusConflict, "job already exists")
	case isValidationError(err):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scheduler.ErrQueueFull):
		s.writeError(w, http.StatusServiceUnavailable, "admission queue is full")
	default:
		s.logger.Error("request failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
