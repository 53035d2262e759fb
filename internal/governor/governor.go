// Package governor bounds how many external calls may be in flight at once.
// A Governor holds two independent gates, one for LLM calls and one for
// search/fetch calls. Gates are shared by every job in the process.
package governor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// ErrInvalidPermits is returned when a gate is configured with fewer than one permit.
var ErrInvalidPermits = errors.New("governor: permits must be at least 1")

// Gate is an admission gate with a fixed number of permits.
type Gate struct {
	name    string
	permits int64
	sem     *semaphore.Weighted
}

// NewGate creates a gate that admits at most permits concurrent callers.
func NewGate(name string, permits int) (*Gate, error) {
	if permits < 1 {
		return nil, fmt.Errorf("%w: %s=%d", ErrInvalidPermits, name, permits)
	}
	return &Gate{
		name:    name,
		permits: int64(permits),
		sem:     semaphore.NewWeighted(int64(permits)),
	}, nil
}

// Name returns the gate name used in logs and errors.
func (g *Gate) Name() string {
	return g.name
}

// Permits returns the configured permit count.
func (g *Gate) Permits() int {
	return int(g.permits)
}

// Do runs fn while holding one permit. It blocks until a permit is free or
// ctx is done. The permit is released on every exit path of fn, including
// panics.
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.acquire(ctx); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return fn(ctx)
}

func (g *Gate) acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire %s permit: %w", g.name, err)
	}
	// Acquire may succeed on an already cancelled context when a permit is free.
	if err := ctx.Err(); err != nil {
		g.sem.Release(1)
		return fmt.Errorf("acquire %s permit: %w", g.name, err)
	}
	return nil
}

// Call is Do for functions that return a value.
func Call[T any](ctx context.Context, g *Gate, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := g.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// Governor owns the process-wide LLM and search gates.
type Governor struct {
	llm    *Gate
	search *Gate
}

// New creates a Governor with the given permit counts.
func New(llmPermits, searchPermits int) (*Governor, error) {
	llm, err := NewGate("llm", llmPermits)
	if err != nil {
		return nil, err
	}
	search, err := NewGate("search", searchPermits)
	if err != nil {
		return nil, err
	}
	return &Governor{llm: llm, search: search}, nil
}

// LLM returns the gate for LLM-class calls.
func (g *Governor) LLM() *Gate {
	return g.llm
}

// Search returns the gate for search and content-fetch calls.
func (g *Governor) Search() *Gate {
	return g.search
}
