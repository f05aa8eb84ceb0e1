// Package ollama 通过 Ollama 原生 API（/api/embed、/api/chat）访问本地模型。
package ollama

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
const ProviderName = "ollama"

func init() {
	llm.Register(ProviderName, New)
}

// Provider Ollama 供应商。Ollama 不需要 API Key。
type Provider struct {
	baseURL string
	model   string
	embed   *httpclient.Client
	chat    *httpclient.Client
}

// New 创建供应商。BaseURL 上 OpenAI 风格的 /v1 后缀会被去掉，
// 因此同一个地址可以同时配置给两种供应商。
func New(cfg llm.Config) (llm.Provider, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, errors.New("ollama: base url and model are required")
	}
	return &Provider{
		baseURL: strings.TrimSuffix(strings.TrimRight(cfg.BaseURL, "/"), "/v1"),
		model:   cfg.Model,
		embed:   httpclient.New(cfg.Timeout, cfg.MaxRetries),
		chat:    httpclient.New(cfg.Timeout, 0),
	}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string { return ProviderName }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed 批量生成向量。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp embedResponse
	if err := p.embed.Call(ctx, http.MethodPost, p.baseURL+"/api/embed", nil,
		embedRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
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
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *modelOptions `json:"options,omitempty"`
}

// modelOptions 对应 Ollama 的 options 字段，MaxTokens 映射为 num_predict。
type modelOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Message llm.Message `json:"message"`
	Done    bool        `json:"done"`
}

// Chat 非流式对话。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (string, error) {
	req := chatRequest{Model: p.model, Messages: messages}
	if o := llm.ApplyChatOptions(opts...); o != (llm.ChatOptions{}) {
		req.Options = &modelOptions{Temperature: o.Temperature, NumPredict: o.MaxTokens}
	}

	var resp chatResponse
	if err := p.chat.Call(ctx, http.MethodPost, p.baseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	return resp.Message.Content, nil
}

// Ping 请求 /api/tags 确认服务可用。
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.chat.Call(ctx, http.MethodGet, p.baseURL+"/api/tags", nil, nil, nil); err != nil {
		return fmt.Errorf("ollama ping: %w", err)
	}
	return nil
}

var _ llm.Provider = (*Provider)(nil)
