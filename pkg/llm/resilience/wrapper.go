package resilience

import (
	"context"

	"github.com/kart-io/pdfrag/pkg/llm"
)

// guard 两种包装器共用的熔断器与名称。
type guard struct {
	name    string
	breaker *Breaker
}

func newGuard(name, kind string, cfg *BreakerConfig) guard {
	c := *DefaultBreakerConfig()
	if cfg != nil {
		c = *cfg
	}
	if c.Name == "" {
		c.Name = kind + "/" + name
	}
	return guard{name: name, breaker: NewBreaker(&c)}
}

// Name 返回被包装供应商的名称。
func (g guard) Name() string { return g.name }

// Breaker 返回熔断器，健康检查通过它读取状态。
func (g guard) Breaker() *Breaker { return g.breaker }

// ResilientEmbeddingProvider 为 Embedding 供应商加上重试与熔断。
// 熔断器未命名时取 "embedding/<供应商名>"。
type ResilientEmbeddingProvider struct {
	guard
	provider llm.EmbeddingProvider
	retry    *RetryConfig
}

func NewResilientEmbeddingProvider(provider llm.EmbeddingProvider, retry *RetryConfig, breaker *BreakerConfig) *ResilientEmbeddingProvider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	return &ResilientEmbeddingProvider{
		guard:    newGuard(provider.Name(), "embedding", breaker),
		provider: provider,
		retry:    retry,
	}
}

func (r *ResilientEmbeddingProvider) Embed(ctx context.Context, texts []string) (out [][]float32, err error) {
	err = RetryWithBreaker(ctx, r.retry, r.breaker, func(ctx context.Context) error {
		var callErr error
		out, callErr = r.provider.Embed(ctx, texts)
		return callErr
	})
	return out, err
}

func (r *ResilientEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := r.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ResilientChatProvider 只加熔断，不重试：生成请求的重试由请求入口决定。
type ResilientChatProvider struct {
	guard
	provider llm.ChatProvider
}

func NewResilientChatProvider(provider llm.ChatProvider, breaker *BreakerConfig) *ResilientChatProvider {
	return &ResilientChatProvider{
		guard:    newGuard(provider.Name(), "chat", breaker),
		provider: provider,
	}
}

func (r *ResilientChatProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.ChatOption) (answer string, err error) {
	err = r.breaker.Execute(func() error {
		var callErr error
		answer, callErr = r.provider.Chat(ctx, messages, opts...)
		return callErr
	})
	return answer, err
}

var (
	_ llm.EmbeddingProvider = (*ResilientEmbeddingProvider)(nil)
	_ llm.ChatProvider      = (*ResilientChatProvider)(nil)
)
