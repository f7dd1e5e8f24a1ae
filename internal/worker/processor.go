// Package worker executes analysis jobs: extraction, the agent pipeline and
// persistence of the result.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/kiranshivaraju/bloodwork/internal/agent"
	"github.com/kiranshivaraju/bloodwork/internal/extract"
	"github.com/kiranshivaraju/bloodwork/internal/queue"
	"github.com/kiranshivaraju/bloodwork/internal/store"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Outcome is the result of processing one job.
type Outcome struct {
	Status   string         `json:"status"`
	ResultID int64          `json:"result_id,omitempty"`
	Analysis *models.Report `json:"analysis,omitempty"`
	Message  string         `json:"message,omitempty"`
}

func (o Outcome) OK() bool { return o.Status == OutcomeSuccess }

// Runner is satisfied by *agent.Pipeline.
type Runner interface {
	Run(ctx context.Context, in agent.Input) (*models.Report, error)
}

// Remover deletes staged files. *staging.Store satisfies it.
type Remover interface {
	Remove(path string) error
}

// Request describes one document to analyze.
type Request struct {
	FilePath string
	FileName string
	Query    string
	UserID   *string
}

// Processor turns a staged document into a stored AnalysisResult.
type Processor struct {
	extractor extract.Extractor
	pipeline  Runner
	results   store.ResultStore
	queue     queue.Queue
	staging   Remover
	retry     RetryConfig
	logger    *slog.Logger
}

type ProcessorOption func(*Processor)

func WithRetry(cfg RetryConfig) ProcessorOption {
	return func(p *Processor) { p.retry = cfg }
}

func WithProcessorLogger(l *slog.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = l }
}

// NewProcessor creates a Processor. q may be nil when only Analyze is used.
func NewProcessor(ex extract.Extractor, pipeline Runner, results store.ResultStore, q queue.Queue, staged Remover, opts ...ProcessorOption) *Processor {
	p := &Processor{
		extractor: ex,
		pipeline:  pipeline,
		results:   results,
		queue:     q,
		staging:   staged,
		retry:     DefaultRetryConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze extracts, runs the pipeline and stores the result. It never
// panics; every failure becomes an error outcome and no result is written.
func (p *Processor) Analyze(ctx context.Context, req Request) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic during analysis", "error", r, "file", req.FilePath, "stack", string(debug.Stack()))
			out = Outcome{Status: OutcomeError, Message: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	text, err := p.extractor.Extract(ctx, req.FilePath)
	if err != nil {
		return errorOutcome(fmt.Errorf("extracting document: %w", err))
	}

	report, err := p.pipeline.Run(ctx, agent.Input{Query: req.Query, Document: text})
	if err != nil {
		return errorOutcome(err)
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return errorOutcome(fmt.Errorf("encoding report: %w", err))
	}

	result := &models.AnalysisResult{
		FileName:  req.FileName,
		Query:     req.Query,
		Analysis:  string(payload),
		CreatedAt: time.Now().UTC(),
		UserID:    req.UserID,
	}
	err = retryWithBackoff(ctx, p.retry, store.IsTransient, func() error {
		return p.results.CreateResult(ctx, result)
	})
	if err != nil {
		return errorOutcome(fmt.Errorf("storing result: %w", err))
	}

	return Outcome{Status: OutcomeSuccess, ResultID: result.ID, Analysis: report}
}

// Process runs Analyze for a claimed job, records the terminal state in the
// queue and removes the staged file. A job cut short because ctx was
// cancelled is released back to the queue with its staged file intact.
func (p *Processor) Process(ctx context.Context, job *models.Job) Outcome {
	log := p.logger.With("job_id", job.ID)
	start := time.Now()

	out := p.Analyze(ctx, Request{
		FilePath: job.FilePath,
		FileName: job.FileName,
		Query:    job.Query,
		UserID:   job.UserID,
	})

	// the queue write must land even if ctx was cancelled mid-job
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if !out.OK() && ctx.Err() != nil {
		if err := p.queue.Release(finishCtx, job.ID); err != nil {
			log.Error("failed to release interrupted job", "error", err)
		} else {
			log.Warn("job interrupted, returned to queue", "duration_ms", time.Since(start).Milliseconds())
		}
		return out
	}
	defer p.removeStaged(log, job.FilePath)

	var err error
	if out.OK() {
		err = p.queue.Complete(finishCtx, job.ID, out.ResultID)
	} else {
		err = p.queue.Fail(finishCtx, job.ID, out.Message)
	}
	switch {
	case errors.Is(err, queue.ErrJobFinished):
		log.Warn("job already finished elsewhere", "status", out.Status)
	case err != nil:
		log.Error("failed to record job outcome", "status", out.Status, "error", err)
	}

	if out.OK() {
		log.Info("job complete", "result_id", out.ResultID, "duration_ms", time.Since(start).Milliseconds())
	} else {
		log.Warn("job failed", "error", out.Message, "duration_ms", time.Since(start).Milliseconds())
	}
	return out
}

func (p *Processor) removeStaged(log *slog.Logger, path string) {
	if p.staging == nil || path == "" {
		return
	}
	if err := p.staging.Remove(path); err != nil {
		log.Warn("failed to remove staged file", "path", path, "error", err)
	}
}

func errorOutcome(err error) Outcome {
	return Outcome{Status: OutcomeError, Message: err.Error()}
}
