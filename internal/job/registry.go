package job

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrCancelledByUser is the cancellation cause and recorded error of a
	// job cancelled through Registry.Cancel.
	ErrCancelledByUser = errors.New("cancelled by user")
	// ErrShutdown is the cancellation cause of jobs interrupted by Registry.Shutdown.
	ErrShutdown = errors.New("server shutting down")
	// ErrRegistryClosed is returned by Start after Shutdown was called.
	ErrRegistryClosed = errors.New("job registry is shut down")
	// ErrUnexpectedEvent is returned when Complete or Fail get an event of the wrong kind.
	ErrUnexpectedEvent = errors.New("unexpected event kind")
)

// Work is the background unit of a job. It runs in its own goroutine and
// must return once ctx is cancelled.
type Work func(ctx context.Context)

// entry holds everything the registry keeps per job.
// cancel and done are set by Start under Registry.mu.
type entry struct {
	job    *Job
	bcast  *Broadcaster
	cancel context.CancelCauseFunc
	done   chan struct{}
}

func (e *entry) active() bool {
	if e.done == nil {
		return false
	}
	select {
	case <-e.done:
		return false
	default:
		return true
	}
}

// Registry is the in-memory owner of all jobs of the process.
// It uses a map with RWMutex for thread-safe access; every job record and
// broadcaster carries its own lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool
	wg      sync.WaitGroup
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// Create allocates a new pending job for query and returns a snapshot of it.
func (r *Registry) Create(_ context.Context, query string) *Job {
	j := New(query)

	r.mu.Lock()
	r.entries[j.ID] = &entry{job: j, bcast: NewBroadcaster()}
	r.mu.Unlock()

	r.logger.Debug("job created", slog.String("job_id", j.ID))
	return j.Clone()
}

// Start moves the job to running and runs work in a new goroutine under a
// context that Cancel and Shutdown can cancel.
func (r *Registry) Start(id string, work Work) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return ErrJobNotFound
	}
	if err := e.job.Start(); err != nil {
		r.mu.Unlock()
		return err
	}

	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer close(done)
		defer cancel(nil)
		work(ctx)
	}()
	return nil
}

// Get returns a snapshot of the job.
// Returns ErrJobNotFound if the job does not exist.
func (r *Registry) Get(_ context.Context, id string) (*Job, error) {
	e := r.lookup(id)
	if e == nil {
		return nil, ErrJobNotFound
	}
	return e.job.Clone(), nil
}

// Len returns the number of jobs held by the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Cancel requests cooperative cancellation of a running job and marks it
// failed with ErrCancelledByUser. It returns false, changing nothing, when
// the job does not exist, was never started, or already finished.
// The terminal event is emitted by the job's work once it unwinds.
func (r *Registry) Cancel(id string) bool {
	r.mu.RLock()
	e, ok := r.entries[id]
	if !ok || !e.active() {
		r.mu.RUnlock()
		return false
	}
	cancel := e.cancel
	r.mu.RUnlock()

	if err := e.job.Fail(ErrCancelledByUser.Error()); err != nil {
		return false
	}
	cancel(ErrCancelledByUser)

	r.logger.Info("job cancelled", slog.String("job_id", id))
	return true
}

// Emit records a progress event on the job and forwards it to every live
// subscriber. Unknown jobs are ignored, as are events published after the
// terminal event. Terminal events go through Complete and Fail.
func (r *Registry) Emit(id string, ev Event) {
	if ev.Kind.IsTerminal() {
		r.logger.Warn("terminal event dropped from Emit",
			slog.String("job_id", id),
			slog.String("kind", string(ev.Kind)),
		)
		return
	}
	e := r.lookup(id)
	if e == nil {
		return
	}
	e.bcast.Publish(ev, e.job.apply)
}

// Complete marks the job completed with resultURL and publishes ev, which
// must be an EventCompleted. Returns ErrInvalidTransition if the job is no
// longer running, for example because it was cancelled meanwhile.
func (r *Registry) Complete(id, resultURL string, ev Event) error {
	if ev.Kind != EventCompleted {
		return ErrUnexpectedEvent
	}
	e := r.lookup(id)
	if e == nil {
		return ErrJobNotFound
	}
	if err := e.job.Complete(resultURL); err != nil {
		return err
	}
	e.bcast.Publish(ev, e.job.apply)
	return nil
}

// Fail marks the job failed with errMsg and publishes ev, which must be an
// EventFailed. A job already failed by Cancel keeps its cancellation error
// but still gets its single terminal event. Returns ErrInvalidTransition if
// the job is pending or completed.
func (r *Registry) Fail(id, errMsg string, ev Event) error {
	if ev.Kind != EventFailed {
		return ErrUnexpectedEvent
	}
	e := r.lookup(id)
	if e == nil {
		return ErrJobNotFound
	}
	if err := e.job.Fail(errMsg); err != nil && e.job.GetStatus() != StatusFailed {
		return err
	}
	e.bcast.Publish(ev, e.job.apply)
	return nil
}

// Subscribe registers a new subscription and returns its event sequence.
// The sequence is single use: it yields events in emission order and ends
// after the terminal event, when ctx is done, or when the consumer stops
// early. The subscription is removed on every one of those paths, and also
// when ctx is done before iteration ever starts.
// A subscriber arriving after the job finished receives the terminal event
// only. Returns ErrJobNotFound for unknown jobs.
func (r *Registry) Subscribe(ctx context.Context, id string) (iter.Seq[Event], error) {
	e := r.lookup(id)
	if e == nil {
		return nil, ErrJobNotFound
	}

	sub := e.bcast.subscribe()
	stop := context.AfterFunc(ctx, func() { e.bcast.unsubscribe(sub) })

	return func(yield func(Event) bool) {
		defer func() {
			stop()
			e.bcast.unsubscribe(sub)
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.notify:
			}
			for _, ev := range sub.drain() {
				if !yield(ev) {
					return
				}
				if ev.Kind.IsTerminal() {
					return
				}
			}
		}
	}, nil
}

// Subscribers returns the number of live subscriptions of a job.
func (r *Registry) Subscribers(id string) int {
	e := r.lookup(id)
	if e == nil {
		return 0
	}
	return e.bcast.Subscribers()
}

// Evict removes terminal jobs that finished more than ttl ago and returns
// how many were removed. A ttl of zero or less disables eviction.
func (r *Registry) Evict(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	cutoff := time.Now().UTC().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		if e.active() || !e.bcast.Closed() {
			continue
		}
		snap := e.job.Clone()
		if snap.Status.IsTerminal() && snap.CompletedAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Shutdown cancels every running job with ErrShutdown and waits until their
// work returned or ctx is done. Start fails with ErrRegistryClosed afterwards.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for _, e := range r.entries {
		if e.active() {
			e.cancel(ErrShutdown)
		}
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) lookup(id string) *entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}
