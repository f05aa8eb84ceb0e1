package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"golang.org/x/sync/singleflight"

	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/pkg/component/storage"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
)

// DefaultDimension is used when neither the configuration nor the model name
// determines the embedding dimension.
const DefaultDimension = 384

// Operation names reported to hooks and carried by errors.
const (
	OpEnsure           = "ensure_collection"
	OpUpsert           = "upsert"
	OpQuery            = "query"
	OpCount            = "count"
	OpList             = "list_collections"
	OpDeleteCollection = "delete_collection"
	OpDeleteDocument   = "delete_document"
)

// ErrCollectionNotFound is returned by backends for operations on a missing collection.
var ErrCollectionNotFound = stderrors.New("collection not found")

// Point is one vector written to a collection.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is one search result. Distance is 1 - cosine similarity.
type Hit struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Distance float64        `json:"distance"`
}

// Backend 定义向量库后端需要实现的最小操作集合。
type Backend interface {
	storage.Client

	// CreateCollection 创建集合（已存在视为成功），返回集合实际的向量维度。
	CreateCollection(ctx context.Context, name string, dimension int) (int, error)

	// Upsert 按 ID 写入或覆盖向量点。
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search 返回与 vector 最相近的至多 topK 个点，filter 为 payload 字段的等值与条件。
	Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Hit, error)

	// Count 返回匹配 filter 的点数量，filter 为空时统计全部。
	Count(ctx context.Context, collection string, filter map[string]any) (int64, error)

	// Delete 删除匹配 filter 的点。
	Delete(ctx context.Context, collection string, filter map[string]any) error

	// DropCollection 删除整个集合。
	DropCollection(ctx context.Context, collection string) error

	// ListCollections 返回所有集合名称。
	ListCollections(ctx context.Context) ([]string, error)
}

// CollectionHandle describes a collection known to exist.
type CollectionHandle struct {
	Name      string
	Dimension int
}

// Hooks receives index events, typically to update metrics.
type Hooks struct {
	// OnOperation is called after every backend call with its outcome.
	OnOperation func(op string, err error)
	// OnChunkCount is called with the exact point count after an upsert.
	OnChunkCount func(collection string, count int64)
}

// Config configures an Index.
type Config struct {
	// Dimension overrides the inferred embedding dimension when positive.
	Dimension int
	// EmbeddingModel is used to infer the dimension.
	EmbeddingModel string
	// Timeout bounds every backend call.
	Timeout time.Duration
}

// Index is the vector index adapter used by the pipeline.
type Index struct {
	backend   Backend
	dimension int
	timeout   time.Duration
	hooks     Hooks

	group   singleflight.Group
	mu      sync.RWMutex
	handles map[string]*CollectionHandle
}

// NewIndex creates an Index over backend.
func NewIndex(backend Backend, cfg Config) *Index {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = InferDimension(cfg.EmbeddingModel)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Index{
		backend:   backend,
		dimension: dim,
		timeout:   timeout,
		handles:   make(map[string]*CollectionHandle),
	}
}

// SetHooks installs event hooks. It must be called before the index is shared.
func (idx *Index) SetHooks(h Hooks) {
	idx.hooks = h
}

// Backend returns the underlying backend.
func (idx *Index) Backend() Backend {
	return idx.backend
}

// Dimension returns the dimension used for new collections.
func (idx *Index) Dimension() int {
	return idx.dimension
}

var modelDimensions = []struct {
	name string
	dim  int
}{
	{"all-minilm-l6-v2", 384},
	{"e5-small", 384},
	{"e5-base", 768},
	{"e5-large", 1024},
	{"text-embedding-3-small", 1536},
	{"text-embedding-3-large", 3072},
	{"nomic-embed-text", 768},
}

// InferDimension 根据嵌入模型名称推断向量维度，未知模型返回 DefaultDimension。
func InferDimension(modelName string) int {
	name := strings.ToLower(modelName)
	for _, m := range modelDimensions {
		if strings.Contains(name, m.name) {
			return m.dim
		}
	}
	return DefaultDimension
}

// Confidence converts a cosine distance into a score in [0, 1].
func Confidence(distance float64) float64 {
	c := 1 - distance
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// EnsureCollection creates the collection if absent. Concurrent calls for the
// same name share one backend round trip.
func (idx *Index) EnsureCollection(ctx context.Context, name string) (*CollectionHandle, error) {
	idx.mu.RLock()
	h, ok := idx.handles[name]
	idx.mu.RUnlock()
	if ok {
		return h, nil
	}

	// 共享的创建过程不随首个调用方取消，超时仍由 idx.call 控制。
	shared := context.WithoutCancel(ctx)
	v, err, _ := idx.group.Do(name, func() (interface{}, error) {
		idx.mu.RLock()
		h, ok := idx.handles[name]
		idx.mu.RUnlock()
		if ok {
			return h, nil
		}

		var dim int
		err := idx.call(shared, OpEnsure, name, func(ctx context.Context) error {
			var err error
			dim, err = idx.backend.CreateCollection(ctx, name, idx.dimension)
			return err
		})
		if err != nil {
			return nil, err
		}

		h = &CollectionHandle{Name: name, Dimension: dim}
		idx.mu.Lock()
		idx.handles[name] = h
		idx.mu.Unlock()
		logger.Debugw("collection ready", "collection", name, "dimension", dim, "backend", idx.backend.Name())
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CollectionHandle), nil
}

// Upsert writes one point per chunk. Either every point is validated and
// handed to the backend, or nothing is written.
func (idx *Index) Upsert(ctx context.Context, collection string, chunks []model.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.ErrRAGValidation.WithMessagef(
			"chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	h, err := idx.EnsureCollection(ctx, collection)
	if err != nil {
		return err
	}

	points := make([]Point, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) != h.Dimension {
			return errors.ErrRAGVectorStore.WithMessagef(
				"%s %s: dimension mismatch for chunk %s: got %d, collection expects %d",
				OpUpsert, collection, chunk.ID, len(vectors[i]), h.Dimension)
		}
		payload := make(map[string]any, len(chunk.Metadata)+1)
		for k, v := range chunk.Metadata {
			payload[k] = v
		}
		payload[model.PayloadText] = chunk.Text
		points[i] = Point{ID: chunk.ID, Vector: vectors[i], Payload: payload}
	}

	if err := idx.call(ctx, OpUpsert, collection, func(ctx context.Context) error {
		return idx.backend.Upsert(ctx, collection, points)
	}); err != nil {
		return err
	}

	if idx.hooks.OnChunkCount != nil {
		if n, err := idx.Count(ctx, collection); err == nil {
			idx.hooks.OnChunkCount(collection, n)
		} else {
			logger.Warnw("failed to refresh chunk count", "collection", collection, "error", err.Error())
		}
	}
	return nil
}

// Query returns at most topK hits in ascending distance order.
func (idx *Index) Query(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Hit, error) {
	if topK <= 0 {
		return nil, errors.ErrRAGValidation.WithMessagef("top_k must be positive, got %d", topK)
	}
	h, err := idx.EnsureCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != h.Dimension {
		return nil, errors.ErrRAGVectorStore.WithMessagef(
			"%s %s: dimension mismatch: got %d, collection expects %d",
			OpQuery, collection, len(vector), h.Dimension)
	}

	var hits []Hit
	if err := idx.call(ctx, OpQuery, collection, func(ctx context.Context) error {
		var err error
		hits, err = idx.backend.Search(ctx, collection, vector, topK, filter)
		return err
	}); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Count returns the number of points stored in collection.
func (idx *Index) Count(ctx context.Context, collection string) (int64, error) {
	var n int64
	err := idx.call(ctx, OpCount, collection, func(ctx context.Context) error {
		var err error
		n, err = idx.backend.Count(ctx, collection, nil)
		return err
	})
	return n, err
}

// ListCollections returns collection names in lexical order.
func (idx *Index) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	if err := idx.call(ctx, OpList, "", func(ctx context.Context) error {
		var err error
		names, err = idx.backend.ListCollections(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// DeleteCollection drops collection and forgets its handle.
func (idx *Index) DeleteCollection(ctx context.Context, collection string) error {
	err := idx.call(ctx, OpDeleteCollection, collection, func(ctx context.Context) error {
		return idx.backend.DropCollection(ctx, collection)
	})
	idx.forget(collection)
	return err
}

// DeleteDocument removes every chunk of one document and returns how many were removed.
func (idx *Index) DeleteDocument(ctx context.Context, collection, documentID string) (int64, error) {
	filter := map[string]any{model.MetaDocumentID: documentID}

	var n int64
	err := idx.call(ctx, OpDeleteDocument, collection, func(ctx context.Context) error {
		var err error
		if n, err = idx.backend.Count(ctx, collection, filter); err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		return idx.backend.Delete(ctx, collection, filter)
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (idx *Index) forget(collection string) {
	idx.mu.Lock()
	delete(idx.handles, collection)
	idx.mu.Unlock()
}

// call runs fn under the index timeout and normalizes its error.
func (idx *Index) call(ctx context.Context, op, collection string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, idx.timeout)
	defer cancel()

	err := fn(ctx)
	if idx.hooks.OnOperation != nil {
		idx.hooks.OnOperation(op, err)
	}
	if err == nil {
		return nil
	}

	logger.Warnw("vector index operation failed",
		"operation", op,
		"collection", collection,
		"backend", idx.backend.Name(),
		"error", err.Error(),
	)
	if stderrors.Is(err, ErrCollectionNotFound) {
		idx.forget(collection)
		return errors.ErrRAGCollectionNotFound.WithMessagef("collection %q not found", collection).WithCause(err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrRAGVectorStore.WithMessagef("%s %s: timed out after %s", op, collection, idx.timeout).WithCause(err)
	}
	return errors.ErrRAGVectorStore.WithMessagef("%s %s failed", op, collection).WithCause(err)
}

// splitPayload separates the chunk text from the rest of a stored payload.
func splitPayload(payload map[string]any) (string, map[string]any) {
	meta := make(map[string]any, len(payload))
	var text string
	for k, v := range payload {
		if k == model.PayloadText {
			text = fmt.Sprint(v)
			continue
		}
		meta[k] = v
	}
	return text, meta
}

// matchFilter reports whether payload satisfies every equality in filter.
// Numbers are compared by value so JSON round trips do not break matches.
func matchFilter(payload, filter map[string]any) bool {
	for k, want := range filter {
		got, ok := payload[k]
		if !ok {
			return false
		}
		if gf, ok := toFloat(got); ok {
			if wf, ok := toFloat(want); ok && gf == wf {
				continue
			}
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
