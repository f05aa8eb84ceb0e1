package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/pdfrag/internal/pkg/rag/textutil"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
)

// countingEmbedder 根据文本长度生成确定性向量，并记录每次调用的输入。
type countingEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	err   error
	short bool
}

func (e *countingEmbedder) Name() string { return "counting" }

func (e *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, append([]string(nil), texts...))
	e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}
	n := len(texts)
	if e.short {
		n--
	}
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		out[i] = []float32{float32(len(texts[i])), 1, 2}
	}
	return out, nil
}

func (e *countingEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *countingEmbedder) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func newCache(t *testing.T, p EmbeddingProvider, cfg *EmbeddingCacheConfig) *CachedEmbeddingProvider {
	t.Helper()
	c, err := NewCachedEmbeddingProvider(p, nil, cfg)
	require.NoError(t, err)
	return c
}

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbedPreservesOrderAndLength(t *testing.T) {
	p := &countingEmbedder{}
	c := newCache(t, p, nil)

	texts := []string{"a", "bbb", "a", "cc", "bbb"}
	out, err := c.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, out, len(texts))

	// 一次模型调用，重复文本去重
	require.Equal(t, 1, p.callCount())
	assert.Equal(t, []string{"a", "bbb", "cc"}, p.calls[0])

	assert.Equal(t, out[0], out[2])
	assert.Equal(t, out[1], out[4])
	assert.NotEqual(t, out[0], out[1])

	for _, v := range out {
		assert.InDelta(t, 1.0, norm(v), 1e-6)
	}
}

func TestEmbedIdempotentAfterCache(t *testing.T) {
	p := &countingEmbedder{}
	c := newCache(t, p, nil)
	ctx := context.Background()

	first, err := c.EmbedSingle(ctx, "hello")
	require.NoError(t, err)
	second, err := c.EmbedSingle(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.callCount())

	stats := c.Stats()
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestEmbedReturnsIndependentCopies(t *testing.T) {
	p := &countingEmbedder{}
	c := newCache(t, p, nil)
	ctx := context.Background()

	first, err := c.Embed(ctx, []string{"hello", "hello"})
	require.NoError(t, err)
	want := append([]float32(nil), first[0]...)

	first[0][0] = 42
	assert.Equal(t, want, first[1], "positions must not share storage")

	again, err := c.EmbedSingle(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, want, again)
	assert.Equal(t, 1, p.callCount())
}

func TestGenerateCacheKey(t *testing.T) {
	c := newCache(t, &countingEmbedder{}, &EmbeddingCacheConfig{KeyPrefix: "emb:"})
	assert.Equal(t, "emb:"+textutil.HashString("hello"), c.generateCacheKey("hello"))
	assert.NotEqual(t, c.generateCacheKey("hello"), c.generateCacheKey("hello "))
}

func TestEmbedOnlyUncachedSentToModel(t *testing.T) {
	p := &countingEmbedder{}
	c := newCache(t, p, nil)
	ctx := context.Background()

	_, err := c.Embed(ctx, []string{"x", "y"})
	require.NoError(t, err)

	var hits, misses int
	c.SetHooks(CacheHooks{
		OnHit:  func(n int) { hits += n },
		OnMiss: func(n int) { misses += n },
	})

	_, err = c.Embed(ctx, []string{"y", "z", "x"})
	require.NoError(t, err)
	require.Equal(t, 2, p.callCount())
	assert.Equal(t, []string{"z"}, p.calls[1])
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
}

func TestEmbedWhitespaceIsDistinctKey(t *testing.T) {
	p := &countingEmbedder{}
	c := newCache(t, p, nil)

	_, err := c.Embed(context.Background(), []string{"text", "text "})
	require.NoError(t, err)
	assert.Equal(t, []string{"text", "text "}, p.calls[0])
}

func TestEmbedFailureIsAtomic(t *testing.T) {
	p := &countingEmbedder{err: stderrors.New("model offline")}
	c := newCache(t, p, nil)

	out, err := c.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.IsCode(err, errors.ErrRAGEmbedding.Code))
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestEmbedCountMismatch(t *testing.T) {
	p := &countingEmbedder{short: true}
	c := newCache(t, p, nil)

	_, err := c.Embed(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGEmbedding.Code))
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestEmbedEmptyInput(t *testing.T) {
	p := &countingEmbedder{}
	c := newCache(t, p, nil)

	out, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, p.callCount())
}

func TestEmbedBoundedLRU(t *testing.T) {
	p := &countingEmbedder{}
	c := newCache(t, p, &EmbeddingCacheConfig{MaxEntries: 2})
	ctx := context.Background()

	_, err := c.Embed(ctx, []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	assert.Equal(t, 2, c.Stats().Entries)
	assert.True(t, c.Stats().Bounded)

	// "a" 已被淘汰，需要重新计算
	_, err = c.EmbedSingle(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, p.callCount())
}

func TestEmbedConcurrentAccess(t *testing.T) {
	p := &countingEmbedder{}
	c := newCache(t, p, nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				text := fmt.Sprintf("t-%d", i%10)
				v, err := c.EmbedSingle(context.Background(), text)
				assert.NoError(t, err)
				assert.Len(t, v, 3)
			}
		}(g)
	}
	wg.Wait()
	assert.Equal(t, 10, c.Stats().Entries)
}

func TestEmbedRedisUnavailableFallsBack(t *testing.T) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rdb.Close() }()

	p := &countingEmbedder{}
	c, err := NewCachedEmbeddingProvider(p, rdb, nil)
	require.NoError(t, err)

	out, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.True(t, c.Stats().Redis)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
}
