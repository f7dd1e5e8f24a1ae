package anthropic_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kiranshivaraju/bloodwork/internal/ai"
	"github.com/kiranshivaraju/bloodwork/internal/ai/anthropic"
	"github.com/kiranshivaraju/bloodwork/internal/config"
	"github.com/kiranshivaraju/bloodwork/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(url string) *anthropic.Provider {
	return anthropic.NewProvider(config.AnthropicConfig{BaseURL: url, APIKey: "sk-ant-test", Model: "claude-sonnet-4-5-20250929"})
}

func TestComplete_JoinsTextBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		w.Write([]byte(`{"content":[{"type":"text","text":"Walk 30 minutes "},{"type":"text","text":"daily."}]}`))
	}))
	defer srv.Close()

	out, err := newProvider(srv.URL).Complete(context.Background(), models.CompletionRequest{Prompt: "plan"})
	require.NoError(t, err)
	assert.Equal(t, "Walk 30 minutes daily.", out)
}

func TestComplete_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()

	_, err := newProvider(srv.URL).Complete(context.Background(), models.CompletionRequest{Prompt: "plan"})
	assert.True(t, errors.Is(err, ai.ErrInvalidResponse))
}
