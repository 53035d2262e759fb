// Package job provides the research Job aggregate and the in-memory Registry
// that owns jobs, their cancellation handles, and their progress broadcasters.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/deepresearch-api/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job was created but its work has not started.
	StatusPending Status = "pending"
	// StatusRunning indicates the research is in progress.
	StatusRunning Status = "running"
	// StatusCompleted indicates the report was produced and stored.
	StatusCompleted Status = "completed"
	// StatusFailed indicates the job failed or was cancelled.
	StatusFailed Status = "failed"
)

// IsTerminal returns true if no further transitions are possible from s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning},
	StatusRunning:   {StatusCompleted, StatusFailed},
	StatusCompleted: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Message is one entry of the job's human-readable progress log.
type Message struct {
	Role    string
	Content string
	At      time.Time
}

// Job represents a research job.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Query is the research question submitted by the client.
	Query string
	// Status is the current job state.
	Status Status
	// Progress is the heuristic percentage of completion (0-100).
	Progress int
	// Messages is the ordered log of progress messages.
	Messages []Message
	// ResultURL is where the report can be retrieved. Set only on completion.
	ResultURL string
	// Error contains the failure reason. Set only on failure.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// StartedAt is when the research started running.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new pending Job for query with a generated ID.
func New(query string) *Job {
	return NewWithID(id.Generate(), query)
}

// NewWithID creates a new pending Job with the specified ID.
// Useful for testing or when the ID is generated externally.
func NewWithID(jobID, query string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        jobID,
		Query:     query,
		Status:    StatusPending,
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now().UTC()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusCompleted, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from pending to running.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Complete transitions the job to completed, records the result location
// and sets progress to 100.
func (j *Job) Complete(resultURL string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	j.ResultURL = resultURL
	j.Progress = 100
	return nil
}

// Fail transitions the job to failed with an error message.
// Returns ErrInvalidTransition if the job is not running.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// apply records a progress event on the job: progress clamped to 0-100
// and the message appended to the log.
func (j *Job) apply(e Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now().UTC()
	j.Progress = clampProgress(e.Progress)
	j.Messages = append(j.Messages, Message{Role: "assistant", Content: e.Message, At: now})
	j.UpdatedAt = now
}

// IsTerminal returns true if the job is completed or failed.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status.IsTerminal()
}

// Clone creates a deep copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	messages := make([]Message, len(j.Messages))
	copy(messages, j.Messages)

	return &Job{
		ID:          j.ID,
		Query:       j.Query,
		Status:      j.Status,
		Progress:    j.Progress,
		Messages:    messages,
		ResultURL:   j.ResultURL,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
