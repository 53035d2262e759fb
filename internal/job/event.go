package job

// EventKind classifies a progress event.
type EventKind string

const (
	// EventProgress reports an intermediate step.
	EventProgress EventKind = "progress"
	// EventCompleted is the terminal event of a successful job.
	EventCompleted EventKind = "completed"
	// EventFailed is the terminal event of a failed or cancelled job.
	EventFailed EventKind = "failed"
)

// IsTerminal returns true for completed and failed events.
func (k EventKind) IsTerminal() bool {
	return k == EventCompleted || k == EventFailed
}

// Event is an immutable progress notification for a job.
// Data carries optional structured payload such as result_url and report.
// Every subscriber receives the same Data map; consumers must not modify it.
type Event struct {
	Kind     EventKind
	Message  string
	Progress int
	Data     map[string]any
}

// Progress builds a non-terminal progress event.
func Progress(message string, progress int) Event {
	return Event{Kind: EventProgress, Message: message, Progress: progress}
}
