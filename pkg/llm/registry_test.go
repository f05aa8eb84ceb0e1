package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{ cfg Config }

func (s *stubProvider) Name() string { return "stub:" + s.cfg.Model }

func (s *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (s *stubProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (s *stubProvider) Chat(_ context.Context, _ []Message, _ ...ChatOption) (string, error) {
	return "stub answer", nil
}

func init() {
	Register("stub", func(cfg Config) (Provider, error) {
		if cfg.Model == "" {
			return nil, errors.New("model is required")
		}
		return &stubProvider{cfg: cfg}, nil
	})
}

func TestRegistry(t *testing.T) {
	emb, err := NewEmbeddingProvider("stub", Config{Model: "minilm"})
	require.NoError(t, err)
	assert.Equal(t, "stub:minilm", emb.Name())

	chat, err := NewChatProvider("stub", Config{Model: "llama3.2"})
	require.NoError(t, err)
	out, err := chat.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "stub answer", out)

	assert.Contains(t, Providers(), "stub")
}

func TestRegistryErrors(t *testing.T) {
	_, err := NewChatProvider("nope", Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown chat provider "nope"`)

	_, err = NewEmbeddingProvider("stub", Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding provider stub: model is required")
}

func TestApplyChatOptions(t *testing.T) {
	o := ApplyChatOptions(WithTemperature(0.1), WithMaxTokens(512))
	assert.InDelta(t, 0.1, o.Temperature, 1e-9)
	assert.Equal(t, 512, o.MaxTokens)
	assert.Equal(t, ChatOptions{}, ApplyChatOptions())
}
