// Package scheduler drives the notification engine on a fixed interval. It
// owns the ticker loop only; all engine semantics live in the trigger
// package.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nudgeworks/nudge-go/internal/conf"
	"github.com/nudgeworks/nudge-go/internal/trigger"
)

// Engine is the minimal surface the scheduler needs from the runner.
type Engine interface {
	Run(ctx context.Context) *trigger.RunResult
}

// Scheduler invokes the engine every interval until stopped. Runs never
// overlap: a tick that fires while a run is still in progress is skipped by
// the ticker's own coalescing.
type Scheduler struct {
	engine   Engine
	interval time.Duration

	cancel   context.CancelFunc
	done     chan struct{}
	startVal sync.Once
	stopVal  sync.Once
}

// New creates a scheduler from the configured interval.
func New(engine Engine, settings *conf.SchedulerSettings) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: settings.Interval,
		done:     make(chan struct{}),
	}
}

// Start launches the ticker loop. The first run happens after one full
// interval, not immediately; callers wanting an immediate pass invoke the
// engine directly first. Start is idempotent.
func (s *Scheduler) Start(ctx context.Context) {
	s.startVal.Do(func() {
		runCtx, cancel := context.WithCancel(ctx)
		s.cancel = cancel
		go s.loop(runCtx)
		getLogger().Info("scheduler started", "interval", s.interval)
	})
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			getLogger().Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	result := s.engine.Run(ctx)
	if len(result.Errors) > 0 {
		getLogger().Warn("engine run completed with errors",
			"processed", result.Processed,
			"sent", result.Sent,
			"failed", result.Failed,
			"errors", len(result.Errors))
		return
	}
	getLogger().LogAttrs(ctx, slog.LevelDebug, "engine run completed",
		slog.Int("processed", result.Processed),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed))
}

// Stop cancels the loop and waits for any in-flight run to finish. Safe to
// call without a prior Start and safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopVal.Do(func() {
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
		<-s.done
	})
}
