package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/bloodwork/internal/ai/transport"
	"github.com/kiranshivaraju/bloodwork/internal/config"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

const (
	apiVersion = "2023-06-01"
	maxTokens  = 2048
)

// Provider implements models.AIProvider using the Anthropic Messages API.
type Provider struct {
	baseURL string
	apiKey  string
	model   string
	http    *transport.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		http:    transport.NewClient(0),
	}
}

func (p *Provider) Name() string  { return "anthropic" }
func (p *Provider) Model() string { return p.model }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	body := messagesRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": apiVersion,
	}

	var resp messagesResponse
	if err := p.http.PostJSON(ctx, p.baseURL+"/v1/messages", headers, body, &resp); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no text content returned", transport.ErrInvalidResponse)
	}
	return sb.String(), nil
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

var _ models.AIProvider = (*Provider)(nil)
