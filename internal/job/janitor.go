package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically evicts finished jobs from a Registry.
type Janitor struct {
	registry *Registry
	ttl      time.Duration
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewJanitor schedules Sweep on the cron spec (for example "@every 10m").
func NewJanitor(registry *Registry, ttl time.Duration, spec string, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		registry: registry,
		ttl:      ttl,
		cron:     cron.New(),
		logger:   logger,
	}
	if _, err := j.cron.AddFunc(spec, func() { j.Sweep() }); err != nil {
		return nil, fmt.Errorf("schedule job sweep %q: %w", spec, err)
	}
	return j, nil
}

// Start begins the schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule. The returned context is done once a running
// sweep has finished.
func (j *Janitor) Stop() context.Context {
	return j.cron.Stop()
}

// Sweep evicts jobs that finished more than the retention period ago.
func (j *Janitor) Sweep() int {
	removed := j.registry.Evict(j.ttl)
	if removed > 0 {
		j.logger.Info("evicted finished jobs",
			slog.Int("removed", removed),
			slog.Int("remaining", j.registry.Len()),
			slog.Duration("retention", j.ttl),
		)
	}
	return removed
}
