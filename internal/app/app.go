// Package app wires the components shared by the server and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/bloodwork/internal/agent"
	"github.com/kiranshivaraju/bloodwork/internal/ai"
	"github.com/kiranshivaraju/bloodwork/internal/config"
	"github.com/kiranshivaraju/bloodwork/internal/extract"
	"github.com/kiranshivaraju/bloodwork/internal/queue"
	"github.com/kiranshivaraju/bloodwork/internal/staging"
	"github.com/kiranshivaraju/bloodwork/internal/store"
	"github.com/kiranshivaraju/bloodwork/internal/worker"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

// App holds the long-lived components built from a Config.
type App struct {
	Config    *config.Config
	Results   store.ResultStore
	Queue     *queue.RedisQueue
	Provider  models.AIProvider
	Staging   *staging.Store
	Processor *worker.Processor

	logger *slog.Logger
}

// New connects the result store and Redis and builds the analysis stack.
// Resources opened before a failure are released.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Results, err = store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open result store: %w", err)
	}

	a.Queue, err = queue.NewRedisQueue(cfg.Redis.URL, cfg.Queue.Name, cfg.Queue.JobTTL)
	if err != nil {
		return nil, fmt.Errorf("create redis queue: %w", err)
	}
	if err := a.Queue.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info("redis connected", "queue", cfg.Queue.Name)

	a.Provider, err = ai.NewProvider(cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("create AI provider: %w", err)
	}
	logger.Info("AI provider initialized", "provider", a.Provider.Name(), "model", a.Provider.Model())

	pipeline := agent.New(a.Provider,
		agent.WithTimeout(cfg.AI.InferenceTimeout),
		agent.WithTemperature(cfg.AI.Temperature),
		agent.WithLogger(logger),
	)
	a.Staging = staging.NewStore(cfg.Staging.Dir, logger)
	a.Processor = worker.NewProcessor(
		extract.NewPDFExtractor(logger),
		pipeline,
		a.Results,
		a.Queue,
		a.Staging,
		worker.WithProcessorLogger(logger),
	)

	return a, nil
}

// NewPool returns a worker pool sized by WORKER_CONCURRENCY.
func (a *App) NewPool() *worker.Pool {
	return worker.NewPool(a.Queue, a.Processor, a.Config.Queue.WorkerConcurrency, worker.WithPoolLogger(a.logger))
}

// NewSweeper schedules the staging sweep and the stale-job requeue.
func (a *App) NewSweeper() (*staging.Sweeper, error) {
	s := staging.NewSweeper(a.logger)
	schedule := a.Config.Staging.SweepSchedule

	if err := s.Schedule("staging-sweep", schedule,
		staging.SweepTask(a.Staging, a.Config.Staging.MaxAge, JobInUse(a.Queue), a.logger)); err != nil {
		return nil, err
	}
	if err := s.Schedule("requeue-stale-jobs", schedule,
		RequeueTask(a.Queue, a.Config.Queue.StaleAfter, a.logger)); err != nil {
		return nil, err
	}
	return s, nil
}

// JobInUse reports a staged file as live while its job is pending or
// processing. Files with no job left in the queue are fair game.
func JobInUse(q queue.Queue) staging.InUseFunc {
	return func(ctx context.Context, id string) (bool, error) {
		job, err := q.Get(ctx, id)
		if errors.Is(err, queue.ErrJobNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return !job.IsTerminal(), nil
	}
}

// RequeueTask returns in-flight jobs abandoned by crashed workers to the
// pending list.
func RequeueTask(q queue.Queue, staleAfter time.Duration, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := q.Requeue(ctx, staleAfter)
		if err != nil {
			return fmt.Errorf("requeue stale jobs: %w", err)
		}
		if n > 0 {
			logger.Warn("requeued stale jobs", "count", n, "stale_after", staleAfter)
		}
		return nil
	}
}

// Close releases the store and Redis connections.
func (a *App) Close() error {
	var errs []error
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.Results != nil {
		if err := a.Results.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close result store: %w", err))
		}
	}
	return errors.Join(errs...)
}
