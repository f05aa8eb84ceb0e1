package llm

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingCompleteFromChat(t *testing.T) {
	chat := NewChatOptions()
	emb := NewEmbeddingOptions()
	require.NoError(t, emb.Complete(chat))

	assert.Equal(t, chat.Provider, emb.Provider)
	assert.Equal(t, chat.BaseURL, emb.BaseURL)
	assert.Equal(t, chat.APIKey, emb.APIKey)
	assert.Equal(t, "sentence-transformers/all-MiniLM-L6-v2", emb.Model)
	assert.Empty(t, emb.Validate())
}

func TestEmbeddingKeepsOwnEndpoint(t *testing.T) {
	chat := NewChatOptions()
	emb := NewEmbeddingOptions()
	emb.BaseURL = "http://tei:8080/v1"
	require.NoError(t, emb.Complete(chat))
	assert.Equal(t, "http://tei:8080/v1", emb.BaseURL)
}

func TestFlagSections(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	NewChatOptions().AddFlags(fs)
	NewEmbeddingOptions().AddFlags(fs)

	assert.NotNil(t, fs.Lookup("llm.max-tokens"))
	assert.NotNil(t, fs.Lookup("embedding.model"))
	assert.Nil(t, fs.Lookup("embedding.max-tokens"))
}

func TestValidate(t *testing.T) {
	o := NewChatOptions()
	o.Provider = "openai"
	o.APIKey = ""
	o.Timeout = 0
	errs := o.Validate()
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "llm.api-key")
}

func TestToConfig(t *testing.T) {
	o := NewChatOptions()
	o.Organization = "org"
	cfg := o.ToConfig()
	assert.Equal(t, o.BaseURL, cfg.BaseURL)
	assert.Equal(t, "llama3.2", cfg.Model)
	assert.Equal(t, "org", cfg.Organization)
	assert.Zero(t, cfg.MaxRetries)
	assert.Equal(t, o.Timeout, cfg.Timeout)
}
