package mock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kiranshivaraju/bloodwork/internal/ai"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

// VerdictJSON is the canned verification answer returned by NewMockProvider.
const VerdictJSON = `{"valid": true, "missing_components": [], "notes": "Complete blood count with lipid panel"}`

// MockProvider satisfies models.AIProvider for testing.
type MockProvider struct {
	Name_        string
	Model_       string
	CompleteFunc func(ctx context.Context, req models.CompletionRequest) (string, error)

	calls atomic.Int64
}

func (m *MockProvider) Name() string  { return m.Name_ }
func (m *MockProvider) Model() string { return m.Model_ }

func (m *MockProvider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	m.calls.Add(1)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

// Calls returns how many times Complete was invoked.
func (m *MockProvider) Calls() int {
	return int(m.calls.Load())
}

// NewMockProvider returns a MockProvider with role-appropriate canned answers.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_:  "mock",
		Model_: "mock-v1",
		CompleteFunc: func(_ context.Context, req models.CompletionRequest) (string, error) {
			return CannedAnswer(req), nil
		},
	}
}

// CannedAnswer picks a fixed answer based on the role named in the system prompt.
func CannedAnswer(req models.CompletionRequest) string {
	switch {
	case strings.Contains(req.System, "Medical Report Verifier"):
		return VerdictJSON
	case strings.Contains(req.System, "Senior Doctor"):
		return "Summary of key findings: LDL cholesterol is mildly elevated; all other values within range."
	case strings.Contains(req.System, "Clinical Nutritionist"):
		return "Increase soluble fiber, reduce saturated fat, consider omega-3 supplementation."
	case strings.Contains(req.System, "Exercise Physiologist"):
		return "150 minutes of moderate aerobic activity per week; no contraindications noted."
	default:
		return "Mock answer"
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_:  "mock-failing",
		Model_: "mock-v1",
		CompleteFunc: func(_ context.Context, _ models.CompletionRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until ctx is done. It
// fails the way a real provider does: ErrInferenceTimeout on deadline, the
// context error on cancellation.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_:  "mock-timeout",
		Model_: "mock-v1",
		CompleteFunc: func(ctx context.Context, _ models.CompletionRequest) (string, error) {
			<-ctx.Done()
			return "", doneError(ctx)
		},
	}
}

func doneError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ai.ErrInferenceTimeout
	}
	return fmt.Errorf("ai request cancelled: %w", ctx.Err())
}

// NewSlowProvider answers like NewMockProvider after sleeping delay per call.
func NewSlowProvider(delay time.Duration) *MockProvider {
	return &MockProvider{
		Name_:  "mock-slow",
		Model_: "mock-v1",
		CompleteFunc: func(ctx context.Context, req models.CompletionRequest) (string, error) {
			select {
			case <-time.After(delay):
				return CannedAnswer(req), nil
			case <-ctx.Done():
				return "", doneError(ctx)
			}
		},
	}
}

// Compile-time check that MockProvider implements AIProvider.
var _ models.AIProvider = (*MockProvider)(nil)
