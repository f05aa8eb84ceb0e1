package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/pdfrag/pkg/llm"
	"github.com/kart-io/pdfrag/pkg/utils/json"
)

func newProvider(t *testing.T, url string, mutate ...func(*llm.Config)) *Provider {
	t.Helper()
	cfg := llm.Config{BaseURL: url, APIKey: "test-key", Model: "m", Timeout: time.Second}
	for _, m := range mutate {
		m(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p.(*Provider)
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  llm.Config
		want string
	}{
		{"no key", llm.Config{BaseURL: "http://x", Model: "m"}, "api key"},
		{"no url", llm.Config{APIKey: "k", Model: "m"}, "base url"},
		{"no model", llm.Config{APIKey: "k", BaseURL: "http://x"}, "model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	p, err := llm.NewChatProvider(ProviderName, llm.Config{BaseURL: "http://x", APIKey: "k", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, ProviderName, p.Name())
}

func TestEmbedRestoresOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "org-1", r.Header.Get("OpenAI-Organization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[
			{"embedding":[0,1],"index":1},
			{"embedding":[1,0],"index":0}
		]}`))
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL+"/", func(c *llm.Config) { c.Organization = "org-1" })
	out, err := p.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, out)

	empty, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestEmbedMissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0],"index":0}]}`))
	}))
	defer srv.Close()

	_, err := newProvider(t, srv.URL).Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "no vector for input 1 of 2")
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1],"index":0}]}`))
	}))
	defer srv.Close()

	v, err := newProvider(t, srv.URL, func(c *llm.Config) { c.MaxRetries = 1 }).EmbedSingle(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, v)
	assert.EqualValues(t, 2, calls.Load())
}

func TestChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.Equal(t, 512, req.MaxTokens)
		assert.InDelta(t, 0.1, req.Temperature, 1e-9)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"42"}}]}`))
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, func(c *llm.Config) { c.Model = "llama3.2" })
	got, err := p.Chat(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "q"},
	}, llm.WithTemperature(0.1), llm.WithMaxTokens(512))
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestChatErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, func(c *llm.Config) { c.MaxRetries = 3 })
	msgs := []llm.Message{{Role: llm.RoleUser, Content: "q"}}

	_, err := p.Chat(context.Background(), msgs)
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load(), "chat must not retry")

	_, err = p.Chat(context.Background(), msgs)
	assert.ErrorContains(t, err, "no choices")
}

func TestChatTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := newProvider(t, srv.URL, func(c *llm.Config) { c.Timeout = 20 * time.Millisecond })
	_, err := p.Chat(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "q"}})
	assert.Error(t, err)
}
