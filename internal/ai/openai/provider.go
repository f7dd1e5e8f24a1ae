// Package openai implements models.AIProvider against the OpenAI chat
// completions API. Any OpenAI-compatible server (vLLM, LocalAI) works too.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/bloodwork/internal/ai/transport"
	"github.com/kiranshivaraju/bloodwork/internal/config"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

// Provider implements models.AIProvider using the chat completions endpoint.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	http    *transport.Client
}

func NewProvider(cfg config.OpenAIConfig) *Provider {
	return NewCompatible("openai", cfg.BaseURL, cfg.APIKey, cfg.Model)
}

// NewCompatible builds a provider for any server exposing /v1/chat/completions.
// An empty apiKey omits the Authorization header.
func NewCompatible(name, baseURL, apiKey, model string) *Provider {
	return &Provider{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    transport.NewClient(0),
	}
}

func (p *Provider) Name() string  { return p.name }
func (p *Provider) Model() string { return p.model }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	body := chatRequest{
		Model:       p.model,
		Temperature: req.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
	}

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	var resp chatResponse
	if err := p.http.PostJSON(ctx, p.baseURL+"/v1/chat/completions", headers, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", transport.ErrInvalidResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

var _ models.AIProvider = (*Provider)(nil)
