package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nudgeworks/nudge-go/internal/conf"
	"github.com/nudgeworks/nudge-go/internal/trigger"
)

type countingEngine struct {
	runs    atomic.Int64
	blockCh chan struct{}
}

func (e *countingEngine) Run(ctx context.Context) *trigger.RunResult {
	e.runs.Add(1)
	if e.blockCh != nil {
		select {
		case <-e.blockCh:
		case <-ctx.Done():
		}
	}
	return &trigger.RunResult{}
}

func waitForRuns(t *testing.T, engine *countingEngine, want int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if engine.runs.Load() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("engine ran %d times, want at least %d", engine.runs.Load(), want)
}

func TestSchedulerRunsOnInterval(t *testing.T) {
	engine := &countingEngine{}
	s := New(engine, &conf.SchedulerSettings{Enabled: true, Interval: 10 * time.Millisecond})

	s.Start(context.Background())
	defer s.Stop()

	waitForRuns(t, engine, 3)
}

func TestSchedulerStopHaltsRuns(t *testing.T) {
	engine := &countingEngine{}
	s := New(engine, &conf.SchedulerSettings{Enabled: true, Interval: 10 * time.Millisecond})

	s.Start(context.Background())
	waitForRuns(t, engine, 1)
	s.Stop()

	after := engine.runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, engine.runs.Load())
}

func TestSchedulerStopWaitsForInFlightRun(t *testing.T) {
	engine := &countingEngine{blockCh: make(chan struct{})}
	s := New(engine, &conf.SchedulerSettings{Enabled: true, Interval: 10 * time.Millisecond})

	s.Start(context.Background())
	waitForRuns(t, engine, 1)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestSchedulerStopWithoutStart(t *testing.T) {
	s := New(&countingEngine{}, &conf.SchedulerSettings{Enabled: true, Interval: time.Minute})
	require.NotPanics(t, s.Stop)
	require.NotPanics(t, s.Stop)
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	engine := &countingEngine{}
	s := New(engine, &conf.SchedulerSettings{Enabled: true, Interval: 10 * time.Millisecond})

	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	waitForRuns(t, engine, 1)
}
