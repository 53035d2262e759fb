package job

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJanitor_InvalidSchedule(t *testing.T) {
	r := newTestRegistry(t)

	_, err := NewJanitor(r, time.Hour, "not a schedule", nil)
	assert.Error(t, err)
}

func TestJanitor_Sweep(t *testing.T) {
	r := newTestRegistry(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	j, err := NewJanitor(r, time.Nanosecond, "@every 1h", logger)
	require.NoError(t, err)

	created := r.Create(context.Background(), "q")
	done := make(chan struct{})
	require.NoError(t, r.Start(created.ID, func(ctx context.Context) {
		defer close(done)
		_ = r.Fail(created.ID, "boom", Event{Kind: EventFailed})
	}))
	<-done

	require.Eventually(t, func() bool { return j.Sweep() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, j.Sweep())
}

func TestJanitor_StartStop(t *testing.T) {
	r := newTestRegistry(t)

	j, err := NewJanitor(r, time.Hour, "@every 1h", nil)
	require.NoError(t, err)

	j.Start()
	select {
	case <-j.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
