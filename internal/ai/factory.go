package ai

import (
	"fmt"

	"github.com/kiranshivaraju/bloodwork/internal/ai/anthropic"
	"github.com/kiranshivaraju/bloodwork/internal/ai/ollama"
	"github.com/kiranshivaraju/bloodwork/internal/ai/openai"
	"github.com/kiranshivaraju/bloodwork/internal/ai/vllm"
	"github.com/kiranshivaraju/bloodwork/internal/config"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
)

// NewProvider builds the chat-completion provider named by AI_PROVIDER
// (ollama, vllm, openai or anthropic) from its section of AIConfig. Every
// pipeline stage sends its prompts through the returned provider. Called once
// at process startup; providers are safe for concurrent use.
func NewProvider(cfg config.AIConfig) (models.AIProvider, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "vllm":
		return vllm.NewProvider(cfg.VLLM), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, vllm, openai, anthropic", cfg.Provider)
	}
}
