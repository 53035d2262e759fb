package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/deepresearch-api/internal/job"
	"github.com/maauso/deepresearch-api/internal/job/id"
)

// Researcher starts research jobs.
type Researcher interface {
	Submit(ctx context.Context, query string) (*job.Job, error)
}

// Jobs gives read, stream and cancel access to existing jobs.
type Jobs interface {
	Get(ctx context.Context, id string) (*job.Job, error)
	Subscribe(ctx context.Context, id string) (iter.Seq[job.Event], error)
	Cancel(id string) bool
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	research  Researcher
	jobs      Jobs
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(research Researcher, jobs Jobs, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		research:  research,
		jobs:      jobs,
		validator: validator.New(),
		logger:    logger,
	}
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateResearch handles POST /research requests.
func (h *Handlers) CreateResearch(w http.ResponseWriter, r *http.Request) {
	var req CreateResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	// The job outlives the request.
	created, err := h.research.Submit(context.WithoutCancel(r.Context()), req.Query)
	if err != nil {
		h.logger.Error("failed to start research",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusServiceUnavailable, "failed to start research", "JOB_CREATION_FAILED")
		return
	}

	h.logger.Info("research job created",
		slog.String("job_id", created.ID),
		slog.Int("query_length", len(req.Query)),
	)

	writeJSON(w, http.StatusAccepted, CreateResearchResponse{TaskID: created.ID})
}

// GetResearch handles GET /research/{id} requests.
func (h *Handlers) GetResearch(w http.ResponseWriter, r *http.Request) {
	found, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(found))
}

// StreamResearch handles GET /research/{id}/stream requests. Events are sent
// as server-sent events until the job's terminal event or until the client
// goes away.
func (h *Handlers) StreamResearch(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if !id.Valid(jobID) {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "STREAMING_UNSUPPORTED")
		return
	}

	events, err := h.jobs.Subscribe(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to subscribe to job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to subscribe to job", "INTERNAL_ERROR")
		return
	}

	// A stream lasts as long as the job, not as long as the server write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sent := 0
	for ev := range events {
		payload, err := json.Marshal(newStreamEvent(ev))
		if err != nil {
			h.logger.Error("failed to encode stream event",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			h.logger.Debug("stream client went away",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			return
		}
		flusher.Flush()
		sent++
	}

	h.logger.Debug("stream closed",
		slog.String("job_id", jobID),
		slog.Int("events", sent),
	)
}

// CancelResearch handles POST /research/{id}/cancel requests.
func (h *Handlers) CancelResearch(w http.ResponseWriter, r *http.Request) {
	found, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if !h.jobs.Cancel(found.ID) {
		writeError(w, http.StatusBadRequest, "job cannot be cancelled", "JOB_NOT_CANCELLABLE")
		return
	}

	h.logger.Info("research job cancelled", slog.String("job_id", found.ID))
	writeJSON(w, http.StatusOK, CancelResponse{Status: "cancelled"})
}

// lookup loads the job named by the {id} path value, writing the error
// response itself when that fails.
func (h *Handlers) lookup(w http.ResponseWriter, r *http.Request) (*job.Job, bool) {
	jobID := r.PathValue("id")
	if !id.Valid(jobID) {
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
		return nil, false
	}

	found, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return nil, false
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "INTERNAL_ERROR")
		return nil, false
	}
	return found, true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
