package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bloodwork/internal/queue"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

// JobProcessor is satisfied by *Processor.
type JobProcessor interface {
	Process(ctx context.Context, job *models.Job) Outcome
}

// Pool runs a fixed number of goroutines that each dequeue and process jobs
// until stopped.
type Pool struct {
	queue       queue.Queue
	processor   JobProcessor
	size        int
	pollTimeout time.Duration
	errBackoff  time.Duration
	prefix      string
	logger      *slog.Logger

	wg         sync.WaitGroup
	stopPoll   context.CancelFunc
	cancelWork context.CancelFunc
}

type PoolOption func(*Pool)

// WithPollTimeout sets how long one Dequeue call blocks.
func WithPollTimeout(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollTimeout = d }
}

func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *Pool) { p.logger = l }
}

func NewPool(q queue.Queue, processor JobProcessor, size int, opts ...PoolOption) *Pool {
	prefix, err := os.Hostname()
	if err != nil {
		prefix = uuid.NewString()[:8]
	}
	p := &Pool{
		queue:       q,
		processor:   processor,
		size:        size,
		pollTimeout: 2 * time.Second,
		errBackoff:  time.Second,
		prefix:      prefix,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Cancelling ctx has the same effect as Stop
// without a drain deadline.
func (p *Pool) Start(ctx context.Context) {
	pollCtx, stopPoll := context.WithCancel(ctx)
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	p.stopPoll = stopPoll
	p.cancelWork = cancelWork

	p.logger.Info("starting worker pool", "workers", p.size)
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.run(pollCtx, workCtx, fmt.Sprintf("%s-%d", p.prefix, i))
	}
}

// Stop stops claiming new jobs and waits for in-flight jobs to finish. If ctx
// expires first, in-flight jobs are cancelled and ctx's error is returned.
func (p *Pool) Stop(ctx context.Context) error {
	if p.stopPoll == nil {
		return nil
	}
	p.logger.Info("stopping worker pool")
	p.stopPoll()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancelWork()
		p.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		p.cancelWork()
		<-done
		p.logger.Warn("worker pool stopped before in-flight jobs finished")
		return ctx.Err()
	}
}

func (p *Pool) run(pollCtx, workCtx context.Context, workerID string) {
	defer p.wg.Done()
	log := p.logger.With("worker_id", workerID)
	log.Debug("worker started")

	for pollCtx.Err() == nil {
		job, err := p.queue.Dequeue(pollCtx, workerID, p.pollTimeout)
		if err != nil {
			if pollCtx.Err() != nil {
				break
			}
			log.Error("dequeue failed", "error", err)
			select {
			case <-pollCtx.Done():
			case <-time.After(p.errBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		log.Info("job claimed", "job_id", job.ID)
		p.processor.Process(workCtx, job)
	}

	log.Debug("worker stopped")
}
