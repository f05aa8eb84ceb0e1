// Package llm 定义嵌入与对话模型的供应商抽象。
// 嵌入和对话可以分别使用不同供应商、不同地址的模型。
package llm

import "context"

// EmbeddingProvider 生成文本向量。
type EmbeddingProvider interface {
	// Embed 返回与 texts 一一对应的向量。
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// ChatProvider 生成对话回复。
type ChatProvider interface {
	// Chat 返回第一条候选回复的文本，不使用流式输出。
	Chat(ctx context.Context, messages []Message, opts ...ChatOption) (string, error)
	Name() string
}

// Provider 同时实现两种能力，供应商包的工厂返回该类型。
type Provider interface {
	EmbeddingProvider
	ChatProvider
}

// Role 消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message 对话中的一条消息，字段名与 OpenAI 和 Ollama 的请求体一致。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatOptions 单次调用的生成参数，零值交给供应商默认。
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// ChatOption 修改 ChatOptions。
type ChatOption func(*ChatOptions)

// WithTemperature 设置采样温度。
func WithTemperature(t float64) ChatOption {
	return func(o *ChatOptions) { o.Temperature = t }
}

// WithMaxTokens 限制生成的 token 数。
func WithMaxTokens(n int) ChatOption {
	return func(o *ChatOptions) { o.MaxTokens = n }
}

// ApplyChatOptions 按顺序应用 opts。
func ApplyChatOptions(opts ...ChatOption) ChatOptions {
	var o ChatOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
