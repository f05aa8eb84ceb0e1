package llm

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

// Config 是传给供应商工厂的连接参数。一个实例只服务一种角色，
// 所以只有一个 Model。
type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	Timeout      time.Duration
	MaxRetries   int    // HTTP 层重试次数
	Organization string // 仅 OpenAI 使用
}

// Factory 根据 Config 创建供应商。
type Factory func(cfg Config) (Provider, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// Register 注册供应商工厂，供应商包在 init 中调用。重复注册会覆盖。
func Register(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// Providers 返回已注册的供应商名称，按字母排序。
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func newProvider(role, name string, cfg Config) (Provider, error) {
	factoriesMu.RLock()
	f, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown %s provider %q (registered: %v)", role, name, Providers())
	}
	p, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s provider %s: %w", role, name, err)
	}
	return p, nil
}

// NewEmbeddingProvider 创建嵌入供应商。
func NewEmbeddingProvider(name string, cfg Config) (EmbeddingProvider, error) {
	return newProvider("embedding", name, cfg)
}

// NewChatProvider 创建对话供应商。
func NewChatProvider(name string, cfg Config) (ChatProvider, error) {
	return newProvider("chat", name, cfg)
}
