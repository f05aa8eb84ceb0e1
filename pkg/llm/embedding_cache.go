package llm

import (
	"context"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/pdfrag/internal/pkg/rag/textutil"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
	"github.com/kart-io/pdfrag/pkg/utils/json"
)

// EmbeddingCacheConfig Embedding 缓存配置。
type EmbeddingCacheConfig struct {
	// MaxEntries 本地缓存的最大条目数，0 表示不限制。
	MaxEntries int
	// TTL Redis 二级缓存的过期时间。
	TTL time.Duration
	// KeyPrefix Redis 缓存键前缀。
	KeyPrefix string
}

// DefaultEmbeddingCacheConfig 返回默认的 Embedding 缓存配置。
func DefaultEmbeddingCacheConfig() *EmbeddingCacheConfig {
	return &EmbeddingCacheConfig{
		MaxEntries: 0,
		TTL:        24 * time.Hour,
		KeyPrefix:  "pdfrag:emb:",
	}
}

// CacheHooks 缓存命中 / 未命中回调，用于指标上报。
type CacheHooks struct {
	OnHit  func(n int)
	OnMiss func(n int)
}

// CacheStats 缓存统计信息。
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
	Bounded bool  `json:"bounded"`
	Redis   bool  `json:"redis"`
}

// localStore 进程内一级缓存。
type localStore interface {
	Get(key string) ([]float32, bool)
	Add(key string, v []float32)
	Len() int
}

type mapStore struct {
	mu sync.RWMutex
	m  map[string][]float32
}

func (s *mapStore) Get(key string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *mapStore) Add(key string, v []float32) {
	s.mu.Lock()
	s.m[key] = v
	s.mu.Unlock()
}

func (s *mapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

type lruStore struct {
	c *lru.Cache[string, []float32]
}

func (s lruStore) Get(key string) ([]float32, bool) { return s.c.Get(key) }
func (s lruStore) Add(key string, v []float32)      { s.c.Add(key, v) }
func (s lruStore) Len() int                         { return s.c.Len() }

// CachedEmbeddingProvider 提供 Embedding 缓存功能的包装器。
//
// 一级缓存以原始文本为键（不做任何归一化），二级缓存（可选）为 Redis，
// 键为 KeyPrefix + sha256(text)。返回的向量均已归一化为单位长度。
type CachedEmbeddingProvider struct {
	provider EmbeddingProvider
	local    localStore
	redis    *goredis.Client
	config   *EmbeddingCacheConfig
	hooks    CacheHooks

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedEmbeddingProvider 创建带缓存的 Embedding Provider。redis 可以为 nil。
func NewCachedEmbeddingProvider(
	provider EmbeddingProvider,
	redis *goredis.Client,
	config *EmbeddingCacheConfig,
) (*CachedEmbeddingProvider, error) {
	if config == nil {
		config = DefaultEmbeddingCacheConfig()
	}

	var local localStore = &mapStore{m: make(map[string][]float32)}
	if config.MaxEntries > 0 {
		c, err := lru.New[string, []float32](config.MaxEntries)
		if err != nil {
			return nil, errors.ErrRAGConfiguration.WithCause(err)
		}
		local = lruStore{c: c}
	}

	return &CachedEmbeddingProvider{
		provider: provider,
		local:    local,
		redis:    redis,
		config:   config,
	}, nil
}

// SetHooks 设置命中统计回调。
func (c *CachedEmbeddingProvider) SetHooks(h CacheHooks) {
	c.hooks = h
}

// generateCacheKey 基于文本的 SHA256 摘要生成 Redis 缓存键。
func (c *CachedEmbeddingProvider) generateCacheKey(text string) string {
	return c.config.KeyPrefix + textutil.HashString(text)
}

// EmbedSingle 生成单个文本的 Embedding（带缓存）。
func (c *CachedEmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Embed 批量生成 Embedding（带缓存）。
//
// 未命中的文本去重后只调用一次底层 provider；底层失败时整个调用失败，
// 不写入任何缓存，返回 ErrRAGEmbedding。
func (c *CachedEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	if len(texts) == 0 {
		return embeddings, nil
	}

	// 1. 一级缓存
	var pending []int
	for i, text := range texts {
		if v, ok := c.local.Get(text); ok {
			embeddings[i] = v
			continue
		}
		pending = append(pending, i)
	}

	// 2. 去重未命中文本
	var uncached []string
	seen := make(map[string]struct{}, len(pending))
	for _, i := range pending {
		if _, ok := seen[texts[i]]; ok {
			continue
		}
		seen[texts[i]] = struct{}{}
		uncached = append(uncached, texts[i])
	}

	// 3. 二级缓存
	resolved := make(map[string][]float32, len(uncached))
	if len(uncached) > 0 && c.redis != nil {
		for text, v := range c.loadRemote(ctx, uncached) {
			resolved[text] = v
			c.local.Add(text, v)
		}
		var remaining []string
		for _, text := range uncached {
			if _, ok := resolved[text]; !ok {
				remaining = append(remaining, text)
			}
		}
		uncached = remaining
	}

	// 4. 批量计算剩余文本
	if len(uncached) > 0 {
		logger.Debugw("embedding cache miss (batch)", "total", len(texts), "uncached", len(uncached))
		vectors, err := c.provider.Embed(ctx, uncached)
		if err != nil {
			return nil, errors.ErrRAGEmbedding.WithCause(err)
		}
		if len(vectors) != len(uncached) {
			return nil, errors.ErrRAGEmbedding.WithMessagef(
				"embedding provider returned %d vectors for %d texts", len(vectors), len(uncached))
		}

		for i, text := range uncached {
			v := Normalize(vectors[i])
			resolved[text] = v
			c.local.Add(text, v)
		}
		c.storeRemote(ctx, uncached, resolved)
	}

	for _, i := range pending {
		embeddings[i] = resolved[texts[i]]
	}
	// 缓存中的向量共享底层数组，返回副本
	for i := range embeddings {
		embeddings[i] = slices.Clone(embeddings[i])
	}

	// 二级缓存命中的位置同样计为命中
	misses := len(uncached)
	hits := len(texts) - c.countFresh(texts, pending, uncached)

	c.record(hits, misses)
	return embeddings, nil
}

// countFresh 统计由本次模型调用得到结果的输入位置数。
func (c *CachedEmbeddingProvider) countFresh(texts []string, pending []int, fresh []string) int {
	if len(fresh) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(fresh))
	for _, t := range fresh {
		set[t] = struct{}{}
	}
	n := 0
	for _, i := range pending {
		if _, ok := set[texts[i]]; ok {
			n++
		}
	}
	return n
}

func (c *CachedEmbeddingProvider) record(hits, misses int) {
	c.hits.Add(int64(hits))
	c.misses.Add(int64(misses))
	if hits > 0 && c.hooks.OnHit != nil {
		c.hooks.OnHit(hits)
	}
	if misses > 0 && c.hooks.OnMiss != nil {
		c.hooks.OnMiss(misses)
	}
}

// loadRemote 从 Redis 批量读取；任何 Redis 错误都视为未命中。
func (c *CachedEmbeddingProvider) loadRemote(ctx context.Context, texts []string) map[string][]float32 {
	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = c.generateCacheKey(text)
	}

	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warnw("redis mget error, falling back to provider", "error", err.Error())
		return nil
	}

	found := make(map[string][]float32)
	for i, raw := range values {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var v []float32
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			// 反序列化失败，删除损坏的缓存
			logger.Warnw("failed to unmarshal cached embedding, deleting", "error", err.Error(), "key", keys[i])
			_ = c.redis.Del(ctx, keys[i]).Err()
			continue
		}
		found[texts[i]] = v
	}
	return found
}

// storeRemote 写入 Redis；失败只记录日志，不影响结果。
func (c *CachedEmbeddingProvider) storeRemote(ctx context.Context, texts []string, vectors map[string][]float32) {
	if c.redis == nil {
		return
	}

	pipe := c.redis.Pipeline()
	for _, text := range texts {
		data, err := json.Marshal(vectors[text])
		if err != nil {
			logger.Warnw("failed to marshal embedding for caching", "error", err.Error())
			continue
		}
		pipe.Set(ctx, c.generateCacheKey(text), data, c.config.TTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnw("failed to cache embeddings", "error", err.Error(), "count", len(texts))
	}
}

// Name 返回底层 provider 的名称。
func (c *CachedEmbeddingProvider) Name() string {
	return c.provider.Name() + "-cached"
}

// Stats 返回缓存统计信息。
func (c *CachedEmbeddingProvider) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.local.Len(),
		Bounded: c.config.MaxEntries > 0,
		Redis:   c.redis != nil,
	}
}

// Normalize 返回单位长度的向量副本；零向量原样返回。
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		copy(out, v)
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// 确保 CachedEmbeddingProvider 实现了 EmbeddingProvider 接口。
var _ EmbeddingProvider = (*CachedEmbeddingProvider)(nil)
