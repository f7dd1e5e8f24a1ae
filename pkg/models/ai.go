// Package models contains shared data models used across the bloodwork codebase.
package models

import "context"

// AIProvider is the core interface that all LLM integrations must implement.
// Stages never call a vendor client directly; inject this interface.
type AIProvider interface {
	// Complete sends a single system+user prompt pair and returns the model's text answer.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
	// Model returns the configured model name.
	Model() string
}

// CompletionRequest is the input to one LLM call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
}
