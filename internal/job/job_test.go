package job

import (
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	job := New("impact of X")

	if job.ID == "" {
		t.Error("expected job to have an ID")
	}
	if job.Query != "impact of X" {
		t.Errorf("expected query %q, got %q", "impact of X", job.Query)
	}
	if job.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if job.Messages == nil {
		t.Error("expected Messages to be initialized")
	}
}

func TestNewWithID(t *testing.T) {
	id := "test-job-123"
	job := NewWithID(id, "q")

	if job.ID != id {
		t.Errorf("expected ID %s, got %s", id, job.ID)
	}
	if job.Status != StatusPending {
		t.Errorf("expected status %s, got %s", StatusPending, job.Status)
	}
}

func TestJob_ValidTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		wantErr bool
	}{
		{"pending to running", StatusPending, StatusRunning, false},
		{"running to completed", StatusRunning, StatusCompleted, false},
		{"running to failed", StatusRunning, StatusFailed, false},
		// Invalid transitions
		{"pending to completed", StatusPending, StatusCompleted, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"running to pending", StatusRunning, StatusPending, true},
		{"running to running", StatusRunning, StatusRunning, true},
		{"completed to running", StatusCompleted, StatusRunning, true},
		{"completed to failed", StatusCompleted, StatusFailed, true},
		{"failed to running", StatusFailed, StatusRunning, true},
		{"failed to completed", StatusFailed, StatusCompleted, true},
		{"failed to failed", StatusFailed, StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewWithID("test", "q")
			job.Status = tt.from

			err := job.TransitionTo(tt.to)

			if tt.wantErr && err == nil {
				t.Errorf("expected error for transition %s -> %s", tt.from, tt.to)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for transition %s -> %s: %v", tt.from, tt.to, err)
			}
		})
	}
}

func TestJob_Start(t *testing.T) {
	job := New("q")
	beforeStart := time.Now().UTC()

	if err := job.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != StatusRunning {
		t.Errorf("expected status %s, got %s", StatusRunning, job.Status)
	}
	if job.StartedAt.Before(beforeStart) {
		t.Error("expected StartedAt to be set after test start")
	}
}

func TestJob_Complete(t *testing.T) {
	job := New("q")
	_ = job.Start()
	job.apply(Progress("Saving report...", 90))

	if err := job.Complete("local_reports/x.md"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != StatusCompleted {
		t.Errorf("expected status %s, got %s", StatusCompleted, job.Status)
	}
	if job.ResultURL != "local_reports/x.md" {
		t.Errorf("expected result URL to be set, got %q", job.ResultURL)
	}
	if job.Progress != 100 {
		t.Errorf("expected progress 100, got %d", job.Progress)
	}
	if job.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set")
	}
}

func TestJob_Complete_NotRunning(t *testing.T) {
	job := New("q")

	if err := job.Complete("x"); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if job.ResultURL != "" {
		t.Error("result URL must not be set on a rejected completion")
	}
}

func TestJob_Fail(t *testing.T) {
	job := New("q")
	_ = job.Start()

	errMsg := "something went wrong"
	if err := job.Fail(errMsg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if job.Status != StatusFailed {
		t.Errorf("expected status %s, got %s", StatusFailed, job.Status)
	}
	if job.Error != errMsg {
		t.Errorf("expected error %q, got %q", errMsg, job.Error)
	}
	if job.CompletedAt.IsZero() {
		t.Error("expected CompletedAt to be set on failure")
	}
}

func TestJob_Fail_KeepsFirstError(t *testing.T) {
	job := New("q")
	_ = job.Start()
	_ = job.Fail("cancelled by user")

	if err := job.Fail("late failure"); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if job.Error != "cancelled by user" {
		t.Errorf("expected first error to be kept, got %q", job.Error)
	}
}

func TestJob_CannotTransitionFromTerminalState(t *testing.T) {
	terminalStates := []Status{StatusCompleted, StatusFailed}
	allStates := []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

	for _, terminal := range terminalStates {
		for _, target := range allStates {
			t.Run(string(terminal)+"_to_"+string(target), func(t *testing.T) {
				job := NewWithID("test", "q")
				job.Status = terminal

				err := job.TransitionTo(target)
				if err != ErrInvalidTransition {
					t.Errorf("expected ErrInvalidTransition, got %v", err)
				}
			})
		}
	}
}

func TestJob_IsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusRunning, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			job := NewWithID("test", "q")
			job.Status = tt.status

			if got := job.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestJob_ApplyClampsProgress(t *testing.T) {
	job := New("q")

	tests := []struct {
		input    int
		expected int
	}{
		{50, 50},
		{0, 0},
		{100, 100},
		{-10, 0},   // Clamped to 0
		{150, 100}, // Clamped to 100
	}

	for _, tt := range tests {
		job.apply(Progress("p", tt.input))
		if job.Progress != tt.expected {
			t.Errorf("apply(progress %d): expected %d, got %d", tt.input, tt.expected, job.Progress)
		}
	}
}

func TestJob_ApplyAppendsMessages(t *testing.T) {
	job := New("q")

	job.apply(Progress("first", 5))
	job.apply(Progress("second", 10))

	if len(job.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(job.Messages))
	}
	if job.Messages[0].Content != "first" || job.Messages[1].Content != "second" {
		t.Errorf("messages out of order: %+v", job.Messages)
	}
	if job.Messages[0].Role != "assistant" {
		t.Errorf("expected role assistant, got %s", job.Messages[0].Role)
	}
}

func TestJob_Clone(t *testing.T) {
	job := New("q")
	job.Status = StatusRunning
	job.Progress = 50
	job.apply(Progress("searching", 50))

	clone := job.Clone()

	if clone.ID != job.ID {
		t.Errorf("expected ID %s, got %s", job.ID, clone.ID)
	}
	if clone.Status != job.Status {
		t.Errorf("expected Status %s, got %s", job.Status, clone.Status)
	}
	if clone.Progress != job.Progress {
		t.Errorf("expected Progress %d, got %d", job.Progress, clone.Progress)
	}

	// Verify clone is independent
	clone.Status = StatusCompleted
	if job.Status == StatusCompleted {
		t.Error("modifying clone should not affect original")
	}

	clone.Messages[0].Content = "changed"
	if job.Messages[0].Content == "changed" {
		t.Error("modifying clone messages should not affect original")
	}
}

func TestJob_GetStatus_ThreadSafe(t *testing.T) {
	job := New("q")

	done := make(chan bool)
	go func() {
		for i := 0; i < 100; i++ {
			_ = job.GetStatus()
		}
		done <- true
	}()

	go func() {
		for i := 0; i < 100; i++ {
			_ = job.Start()
		}
		done <- true
	}()

	<-done
	<-done
}
