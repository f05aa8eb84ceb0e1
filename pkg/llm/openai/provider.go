// Package openai 实现 OpenAI 兼容接口的供应商：OpenAI 官方 API，
// 以及 Ollama 的 /v1、vLLM、LocalAI、TEI 等兼容服务。
//
//	import _ "github.com/kart-io/pdfrag/pkg/llm/openai"
//
//	chat, err := llm.NewChatProvider("openai", llm.Config{
//	    BaseURL: "http://localhost:11434/v1",
//	    APIKey:  "ollama",
//	    Model:   "llama3.2",
//	})
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kart-io/pdfrag/pkg/llm"
	"github.com/kart-io/pdfrag/pkg/utils/httpclient"
)

// ProviderName 注册名。
const ProviderName = "openai"

func init() {
	llm.Register(ProviderName, New)
}

// Provider 调用 /embeddings 与 /chat/completions。
// 嵌入请求按 cfg.MaxRetries 重试，对话请求不重试。
type Provider struct {
	baseURL string
	model   string
	header  http.Header
	embed   *httpclient.Client
	chat    *httpclient.Client
}

// New 创建供应商，APIKey 不能为空（本地兼容服务可填任意值）。
func New(cfg llm.Config) (llm.Provider, error) {
	switch {
	case cfg.APIKey == "":
		return nil, errors.New("openai: api key is required")
	case cfg.BaseURL == "":
		return nil, errors.New("openai: base url is required")
	case cfg.Model == "":
		return nil, errors.New("openai: model is required")
	}

	h := http.Header{}
	h.Set("Authorization", "Bearer "+cfg.APIKey)
	if cfg.Organization != "" {
		h.Set("OpenAI-Organization", cfg.Organization)
	}
	return &Provider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		header:  h,
		embed:   httpclient.New(cfg.Timeout, cfg.MaxRetries),
		chat:    httpclient.New(cfg.Timeout, 0),
	}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string { return ProviderName }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed 批量生成向量。响应按 index 还原为输入顺序，缺失任何一个都视为失败。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var resp embeddingResponse
	if err := p.embed.Call(ctx, http.MethodPost, p.baseURL+"/embeddings", p.header,
		embeddingRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index >= 0 && d.Index < len(out) {
			out[d.Index] = d.Embedding
		}
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("openai embeddings: no vector for input %d of %d", i, len(texts))
		}
	}
	return out, nil
}

// EmbedSingle 生成单个向量。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
}

// Chat 调用 /chat/completions，生成参数为零值时不发送。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	o := llm.ApplyChatOptions(opts...)

	var resp chatResponse
	if err := p.chat.Call(ctx, http.MethodPost, p.baseURL+"/chat/completions", p.header, chatRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   o.MaxTokens,
		Temperature: o.Temperature,
	}, &resp); err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ llm.Provider = (*Provider)(nil)
