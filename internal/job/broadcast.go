package job

import (
	"maps"
	"sync"
)

// subscription is an unbounded FIFO of events for one observer.
// Pushing never blocks; the reader is woken through notify.
type subscription struct {
	mu     sync.Mutex
	queue  []Event
	notify chan struct{}
}

func newSubscription() *subscription {
	return &subscription{notify: make(chan struct{}, 1)}
}

func (s *subscription) push(e Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// drain removes and returns every queued event.
func (s *subscription) drain() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	events := s.queue
	s.queue = nil
	return events
}

// Broadcaster fans out the events of one job to its live subscriptions.
// After a terminal event it is closed: further publishes are dropped and
// the terminal event is kept for late subscribers.
type Broadcaster struct {
	mu    sync.Mutex
	subs  map[*subscription]struct{}
	final *Event
}

// NewBroadcaster creates an open broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*subscription]struct{})}
}

// Publish runs apply and delivers e to every current subscriber. Both happen
// under the broadcaster lock so concurrent publishes are seen in the same
// order by the job record and by every subscriber. Returns false if the
// broadcaster was already closed, in which case apply is not called.
// Data is copied once, so later changes to the caller's map are not seen
// by subscribers.
func (b *Broadcaster) Publish(e Event, apply func(Event)) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.final != nil {
		return false
	}
	if e.Data != nil {
		e.Data = maps.Clone(e.Data)
	}
	if apply != nil {
		apply(e)
	}
	for sub := range b.subs {
		sub.push(e)
	}
	if e.Kind.IsTerminal() {
		final := e
		b.final = &final
	}
	return true
}

// Closed reports whether a terminal event has been published.
func (b *Broadcaster) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.final != nil
}

// Subscribers returns the number of registered subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// subscribe registers a new subscription. When the broadcaster is already
// closed the subscription is not registered and only holds the terminal event.
func (b *Broadcaster) subscribe() *subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := newSubscription()
	if b.final != nil {
		sub.push(*b.final)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

func (b *Broadcaster) unsubscribe(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}
