package ollama

import (
	"context"
	"strings"

	"github.com/kiranshivaraju/bloodwork/internal/ai/transport"
	"github.com/kiranshivaraju/bloodwork/internal/config"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

// Provider implements models.AIProvider using Ollama's /api/chat endpoint.
type Provider struct {
	baseURL string
	model   string
	http    *transport.Client
}

func NewProvider(cfg config.OllamaConfig) *Provider {
	return &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		http:    transport.NewClient(0),
	}
}

func (p *Provider) Name() string  { return "ollama" }
func (p *Provider) Model() string { return p.model }

func (p *Provider) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	body := chatRequest{
		Model:  p.model,
		Stream: false,
		Messages: []message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		Options: options{Temperature: req.Temperature},
	}

	var resp chatResponse
	if err := p.http.PostJSON(ctx, p.baseURL+"/api/chat", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type options struct {
	Temperature float64 `json:"temperature"`
}

type chatResponse struct {
	Message message `json:"message"`
	Done    bool    `json:"done"`
}

var _ models.AIProvider = (*Provider)(nil)
