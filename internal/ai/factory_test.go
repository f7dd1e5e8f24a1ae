package ai_test

import (
	"testing"

	"github.com/kiranshivaraju/bloodwork/internal/ai"
	"github.com/kiranshivaraju/bloodwork/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_BuildsConfiguredChatProvider(t *testing.T) {
	tests := []struct {
		cfg       config.AIConfig
		wantModel string
	}{
		{config.AIConfig{
			Provider: "ollama",
			Ollama:   config.OllamaConfig{BaseURL: "http://localhost:11434", Model: "llama3"},
		}, "llama3"},
		{config.AIConfig{
			Provider: "vllm",
			VLLM:     config.VLLMConfig{BaseURL: "http://localhost:8001", Model: "mistral-7b"},
		}, "mistral-7b"},
		{config.AIConfig{
			Provider: "openai",
			OpenAI:   config.OpenAIConfig{BaseURL: "https://api.openai.com", APIKey: "sk-test", Model: "gpt-3.5-turbo"},
		}, "gpt-3.5-turbo"},
		{config.AIConfig{
			Provider:  "anthropic",
			Anthropic: config.AnthropicConfig{APIKey: "sk-ant-test", Model: "claude-sonnet-4-5-20250929"},
		}, "claude-sonnet-4-5-20250929"},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Provider, func(t *testing.T) {
			p, err := ai.NewProvider(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Provider, p.Name())
			assert.Equal(t, tt.wantModel, p.Model())
		})
	}
}

func TestNewProvider_RejectsUnknownName(t *testing.T) {
	for _, name := range []string{"", "unknown-provider", "OpenAI"} {
		_, err := ai.NewProvider(config.AIConfig{Provider: name})
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), "unknown AI provider")
		assert.Contains(t, err.Error(), "ollama, vllm, openai, anthropic")
	}
}
