package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

var (
	// ErrStageFailed wraps any error that aborted the pipeline.
	ErrStageFailed = errors.New("pipeline stage failed")
	// ErrNoOutput means a stage produced only empty answers within its iteration cap.
	ErrNoOutput = errors.New("stage produced no output")
)

const (
	delegatePrefix   = "DELEGATE "
	maxDocumentBytes = 60000
)

// Input is what one pipeline run consumes.
type Input struct {
	Query    string
	Document string
}

// Pipeline runs stages strictly in order against an AI provider. A Pipeline
// holds no per-run state and is safe for concurrent use.
type Pipeline struct {
	provider    models.AIProvider
	stages      func() []Stage
	timeout     time.Duration
	temperature float64
	logger      *slog.Logger
}

type Option func(*Pipeline)

// WithTimeout bounds every individual provider call.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

func WithTemperature(t float64) Option {
	return func(p *Pipeline) { p.temperature = t }
}

// WithStages replaces DefaultStages. The function is called once per run.
func WithStages(fn func() []Stage) Option {
	return func(p *Pipeline) { p.stages = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a Pipeline over provider.
func New(provider models.AIProvider, opts ...Option) *Pipeline {
	p := &Pipeline{
		provider:    provider,
		stages:      DefaultStages,
		temperature: 0.7,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// run is the mutable state of a single invocation.
type run struct {
	input   Input
	order   []Stage
	stages  map[StageName]Stage
	outputs map[StageName]string
}

// Run executes every stage in order and assembles the report. The first stage
// error aborts the run; no partial report is returned.
func (p *Pipeline) Run(ctx context.Context, in Input) (*models.Report, error) {
	stages := p.stages()
	r := &run{
		input: Input{
			Query:    strings.TrimSpace(in.Query),
			Document: truncateString(in.Document, maxDocumentBytes),
		},
		order:   stages,
		stages:  make(map[StageName]Stage, len(stages)),
		outputs: make(map[StageName]string, len(stages)),
	}
	for _, st := range stages {
		r.stages[st.Name] = st
	}

	report := &models.Report{
		Provider:     p.provider.Name(),
		Model:        p.provider.Model(),
		Verification: fallbackVerdict(""),
	}

	for _, st := range stages {
		start := time.Now()
		out, err := p.runStage(ctx, st, r)
		if err != nil {
			p.logger.Warn("pipeline stage failed", "stage", st.Name, "error", err)
			return nil, fmt.Errorf("%w: %s: %w", ErrStageFailed, st.Name, err)
		}
		r.outputs[st.Name] = out
		p.logger.Debug("pipeline stage done", "stage", st.Name, "duration_ms", time.Since(start).Milliseconds())

		switch st.Name {
		case StageVerification:
			if v, ok := parseVerdict(out); ok {
				report.Verification = v
			} else {
				report.Verification = fallbackVerdict(out)
			}
		case StageAnalysis:
			report.Findings = out
		case StageNutrition:
			report.Nutrition = out
		case StageExercise:
			report.Exercise = out
		}
	}

	return report, nil
}

// runStage calls the provider until the answer is acceptable or the stage's
// iteration budget is spent, then yields the best answer seen. A delegation
// request spends one call for the request and one for the colleague's answer.
func (p *Pipeline) runStage(ctx context.Context, st Stage, r *run) (string, error) {
	budget := st.maxIter()
	var best string
	var consulted []string

	for attempt := 1; budget > 0; attempt++ {
		text, err := p.complete(ctx, p.systemPrompt(st, r, true), p.stagePrompt(st, r, consulted))
		budget--
		if err != nil {
			return "", err
		}

		if peer, question, ok := p.delegation(st, text, r); ok {
			if budget == 0 {
				break
			}
			answer, err := p.complete(ctx, p.systemPrompt(peer, r, false), consultPrompt(peer, r, question))
			budget--
			if err != nil {
				return "", fmt.Errorf("delegating to %s: %w", peer.Name, err)
			}
			consulted = append(consulted, fmt.Sprintf("The %s was asked: %s\nAnswer:\n%s", peer.Role, question, answer))
			p.logger.Debug("stage delegated", "stage", st.Name, "to", peer.Name, "attempt", attempt)
			continue
		}

		if text != "" && !strings.HasPrefix(text, delegatePrefix) {
			best = text
		}
		if acceptable(st, text) {
			return text, nil
		}
		p.logger.Debug("stage answer rejected, retrying", "stage", st.Name, "attempt", attempt, "remaining", budget)
	}

	if best == "" {
		return "", fmt.Errorf("%w after %d calls", ErrNoOutput, st.maxIter())
	}
	return best, nil
}

func (p *Pipeline) complete(ctx context.Context, system, prompt string) (string, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	text, err := p.provider.Complete(ctx, models.CompletionRequest{
		System:      system,
		Prompt:      prompt,
		Temperature: p.temperature,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// delegation recognizes "DELEGATE <stage>: <question>" from a stage that may
// delegate. Targets must be another known stage; the peer answers without the
// option to delegate further.
func (p *Pipeline) delegation(st Stage, text string, r *run) (Stage, string, bool) {
	if !st.AllowDelegation || !strings.HasPrefix(text, delegatePrefix) {
		return Stage{}, "", false
	}
	target, question, found := strings.Cut(strings.TrimPrefix(text, delegatePrefix), ":")
	if !found {
		return Stage{}, "", false
	}
	peer, ok := r.stages[StageName(strings.ToLower(strings.TrimSpace(target)))]
	question = strings.TrimSpace(question)
	if !ok || peer.Name == st.Name || question == "" {
		return Stage{}, "", false
	}
	return peer, question, true
}

func acceptable(st Stage, text string) bool {
	if text == "" || strings.HasPrefix(text, delegatePrefix) {
		return false
	}
	if st.Name == StageVerification {
		_, ok := parseVerdict(text)
		return ok
	}
	return true
}

func (p *Pipeline) systemPrompt(st Stage, r *run, mayDelegate bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are the %s. %s\nYour goal: %s.", st.Role, st.Backstory, st.Goal)
	if mayDelegate && st.AllowDelegation {
		var peers []string
		for _, peer := range r.order {
			if peer.Name != st.Name {
				peers = append(peers, string(peer.Name))
			}
		}
		fmt.Fprintf(&sb, "\nIf you need a colleague's input before answering, reply with exactly one line "+
			"of the form `DELEGATE <stage>: <question>` where <stage> is one of: %s.", strings.Join(peers, ", "))
	}
	return sb.String()
}

func (p *Pipeline) stagePrompt(st Stage, r *run, consulted []string) string {
	var sb strings.Builder
	sb.WriteString(st.task(r.input.Query))
	sb.WriteString("\n\nBlood test report:\n")
	sb.WriteString(r.input.Document)

	if st.UsesFindings {
		if findings := r.outputs[StageAnalysis]; findings != "" {
			sb.WriteString("\n\nFindings from the medical analysis:\n")
			sb.WriteString(findings)
		}
	}
	for _, c := range consulted {
		sb.WriteString("\n\n")
		sb.WriteString(c)
	}

	sb.WriteString("\n\nExpected output:\n")
	sb.WriteString(st.ExpectedOutput)
	return sb.String()
}

func consultPrompt(peer Stage, r *run, question string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "A colleague asks: %s", question)
	if peer.UsesQuery {
		fmt.Fprintf(&sb, "\n\nPatient query: %s", r.input.Query)
	}
	sb.WriteString("\n\nBlood test report:\n")
	sb.WriteString(r.input.Document)
	if findings := r.outputs[StageAnalysis]; findings != "" && peer.UsesFindings {
		sb.WriteString("\n\nFindings from the medical analysis:\n")
		sb.WriteString(findings)
	}
	sb.WriteString("\n\nAnswer briefly and directly.")
	return sb.String()
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
