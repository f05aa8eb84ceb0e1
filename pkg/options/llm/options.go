// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/llm"
	"github.com/kart-io/pdfrag/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（openai, ollama）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数，仅对 embedding 生效。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// MaxTokens 生成的最大 token 数，仅对 chat 生效。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// Temperature 采样温度，仅对 chat 生效。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// flag 前缀：llm 或 embedding
	section string
}

// NewProviderOptions 创建默认 LLM 供应商配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:   "openai",
		BaseURL:    "http://host.docker.internal:11434/v1",
		APIKey:     "ollama",
		Timeout:    30 * time.Second,
		MaxRetries: 2,
		section:    "llm",
	}
}

// NewChatOptions 创建默认 Chat 供应商配置，flag 前缀为 llm.。
func NewChatOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "llama3.2"
	opts.MaxTokens = 512
	opts.Temperature = 0.1
	opts.MaxRetries = 0
	return opts
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置，flag 前缀为 embedding.。
// BaseURL 为空时沿用 chat 的地址。
func NewEmbeddingOptions() *ProviderOptions {
	opts := NewProviderOptions()
	opts.Model = "sentence-transformers/all-MiniLM-L6-v2"
	opts.BaseURL = ""
	opts.APIKey = ""
	opts.Provider = ""
	opts.section = "embedding"
	return opts
}

// ToConfig 转换为供应商工厂使用的连接配置。
func (o *ProviderOptions) ToConfig() llm.Config {
	return llm.Config{
		BaseURL:      o.BaseURL,
		APIKey:       o.APIKey,
		Model:        o.Model,
		Timeout:      o.Timeout,
		MaxRetries:   o.MaxRetries,
		Organization: o.Organization,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + o.sectionName() + "."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (openai, ollama).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum number of retries.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (optional).")
	if o.sectionName() == "llm" {
		fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens to generate.")
		fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	}
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	name := o.sectionName()
	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("%s.provider is required", name))
	}
	if o.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%s.base-url is required", name))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", name))
	}
	if o.Provider == "openai" && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api-key is required for openai provider", name))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", name))
	}
	if o.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("%s.max-tokens must not be negative", name))
	}
	return errs
}

// Complete 使用 chat 配置补齐 embedding 配置中未设置的连接参数。
func (o *ProviderOptions) Complete(fallback *ProviderOptions) error {
	if fallback == nil || fallback == o {
		return nil
	}
	if o.Provider == "" {
		o.Provider = fallback.Provider
	}
	if o.BaseURL == "" {
		o.BaseURL = fallback.BaseURL
	}
	if o.APIKey == "" {
		o.APIKey = fallback.APIKey
	}
	if o.Organization == "" {
		o.Organization = fallback.Organization
	}
	if o.Timeout <= 0 {
		o.Timeout = fallback.Timeout
	}
	return nil
}

func (o *ProviderOptions) sectionName() string {
	if o.section == "" {
		return "llm"
	}
	return o.section
}
