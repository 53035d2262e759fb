// Package server provides the HTTP server for the Deep Research API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/deepresearch-api/internal/job"
)

// CreateResearchRequest is the HTTP request body for starting a research job.
type CreateResearchRequest struct {
	// Query is the research question.
	Query string `json:"query" validate:"required,max=2000"`
}

// CreateResearchResponse is the HTTP response after starting a research job.
type CreateResearchResponse struct {
	// TaskID is the identifier of the created job.
	TaskID string `json:"task_id"`
}

// MessageResponse is one entry of a job's message log.
type MessageResponse struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// Progress is the percentage of completion (0-100).
	Progress int `json:"progress"`
	// Messages is the ordered progress log.
	Messages []MessageResponse `json:"messages"`
	// ResultURL is where the report can be retrieved, once completed.
	ResultURL *string `json:"result_url"`
	// CreatedAt is when the job was submitted.
	CreatedAt time.Time `json:"created_at"`
	// Error contains the error message if the job failed.
	Error *string `json:"error"`
}

// StreamEvent is the payload of one server-sent event.
type StreamEvent struct {
	EventType string         `json:"event_type"`
	Message   string         `json:"message"`
	Progress  int            `json:"progress"`
	Data      map[string]any `json:"data"`
}

// CancelResponse is the HTTP response of a successful cancellation.
type CancelResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

func newJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		ID:        j.ID,
		Status:    string(j.Status),
		Progress:  j.Progress,
		Messages:  make([]MessageResponse, 0, len(j.Messages)),
		CreatedAt: j.CreatedAt,
	}
	for _, m := range j.Messages {
		resp.Messages = append(resp.Messages, MessageResponse{Role: m.Role, Content: m.Content})
	}
	if j.ResultURL != "" {
		resp.ResultURL = &j.ResultURL
	}
	if j.Error != "" {
		resp.Error = &j.Error
	}
	return resp
}

func newStreamEvent(ev job.Event) StreamEvent {
	data := ev.Data
	if data == nil {
		data = map[string]any{}
	}
	return StreamEvent{
		EventType: string(ev.Kind),
		Message:   ev.Message,
		Progress:  ev.Progress,
		Data:      data,
	}
}
