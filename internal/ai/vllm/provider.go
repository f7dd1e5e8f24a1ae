package vllm

import (
	"github.com/kiranshivaraju/bloodwork/internal/ai/openai"
	"github.com/kiranshivaraju/bloodwork/internal/config"
)

// NewProvider returns an OpenAI-compatible provider pointed at a vLLM server.
func NewProvider(cfg config.VLLMConfig) *openai.Provider {
	return openai.NewCompatible("vllm", cfg.BaseURL, "", cfg.Model)
}
