package staging

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs maintenance tasks on cron schedules. Each task also runs once
// immediately on Start. A run that is still in progress when its next tick
// fires is skipped.
type Sweeper struct {
	cron   *cron.Cron
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSweeper(logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule registers fn under name with a standard cron spec or descriptor
// such as "@every 10m".
func (s *Sweeper) Schedule(name, spec string, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() { s.runTask(name, fn) })
	if err != nil {
		return fmt.Errorf("scheduling %s (%q): %w", name, spec, err)
	}
	s.logger.Info("maintenance task scheduled", "task", name, "schedule", spec)
	return nil
}

func (s *Sweeper) Start() {
	for _, e := range s.cron.Entries() {
		job := e.WrappedJob
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			job.Run()
		}()
	}
	s.cron.Start()
}

// Stop halts scheduling, cancels running tasks and waits for them until ctx
// expires.
func (s *Sweeper) Stop(ctx context.Context) {
	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		<-cronDone.Done()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("timed out waiting for maintenance tasks to finish")
	}
}

func (s *Sweeper) runTask(name string, fn func(ctx context.Context) error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("maintenance task panic", "task", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := fn(s.ctx); err != nil {
		s.logger.Error("maintenance task failed", "task", name, "error", err)
		return
	}
	s.logger.Debug("maintenance task done", "task", name, "duration_ms", time.Since(start).Milliseconds())
}

// SweepTask adapts Store.Sweep for Schedule.
func SweepTask(store *Store, maxAge time.Duration, inUse InUseFunc, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := store.Sweep(ctx, maxAge, inUse)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("staging sweep removed stale files", "removed", n, "dir", store.Dir())
		}
		return nil
	}
}
