package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
)

func newTestIndex(t *testing.T, dim int) (*Index, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	return NewIndex(backend, Config{Dimension: dim, Timeout: time.Second}), backend
}

func chunk(id, doc string, page int, text string) model.Chunk {
	return model.Chunk{
		ID:   id,
		Text: text,
		Metadata: map[string]any{
			model.MetaDocumentID: doc,
			model.MetaFilename:   doc + ".pdf",
			model.MetaPage:       page,
		},
	}
}

func TestInferDimension(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"sentence-transformers/all-MiniLM-L6-v2", 384},
		{"intfloat/e5-small-v2", 384},
		{"intfloat/e5-base-v2", 768},
		{"intfloat/e5-large-v2", 1024},
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"nomic-embed-text:latest", 768},
		{"unknown-model", DefaultDimension},
		{"", DefaultDimension},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, InferDimension(tt.model))
		})
	}
}

func TestNewIndexDimension(t *testing.T) {
	idx := NewIndex(NewMemoryBackend(), Config{EmbeddingModel: "text-embedding-3-small"})
	assert.Equal(t, 1536, idx.Dimension())

	idx = NewIndex(NewMemoryBackend(), Config{Dimension: 8, EmbeddingModel: "text-embedding-3-small"})
	assert.Equal(t, 8, idx.Dimension())
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 1.0, Confidence(0))
	assert.Equal(t, 0.75, Confidence(0.25))
	assert.Equal(t, 0.0, Confidence(1.5))
	assert.Equal(t, 1.0, Confidence(-0.2))
}

func TestUpsertLengthMismatch(t *testing.T) {
	idx, backend := newTestIndex(t, 2)
	ctx := context.Background()

	err := idx.Upsert(ctx, "docs", []model.Chunk{chunk("a", "d1", 1, "x")}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGValidation.Code))

	names, _ := backend.ListCollections(ctx)
	assert.Empty(t, names, "nothing must be written")
}

func TestUpsertDimensionMismatch(t *testing.T) {
	idx, _ := newTestIndex(t, 3)
	ctx := context.Background()

	chunks := []model.Chunk{chunk("a", "d1", 1, "x"), chunk("b", "d1", 1, "y")}
	vectors := [][]float32{{1, 0, 0}, {1, 0}}
	err := idx.Upsert(ctx, "docs", chunks, vectors)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGVectorStore.Code))
	assert.Contains(t, err.Error(), "dimension mismatch")

	n, err := idx.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQueryDimensionMismatch(t *testing.T) {
	idx, _ := newTestIndex(t, 3)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "docs", []model.Chunk{chunk("a", "d1", 1, "x")}, [][]float32{{1, 0, 0}}))

	hits, err := idx.Query(ctx, "docs", []float32{1, 0}, 5, nil)
	require.Error(t, err)
	assert.Nil(t, hits)
	assert.True(t, errors.IsCode(err, errors.ErrRAGVectorStore.Code))
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestUpsertAndQuery(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	ctx := context.Background()

	var counted int64
	idx.SetHooks(Hooks{OnChunkCount: func(_ string, n int64) { counted = n }})

	chunks := []model.Chunk{
		chunk("a", "d1", 1, "east"),
		chunk("b", "d1", 2, "north"),
		chunk("c", "d2", 1, "north-east"),
	}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	require.NoError(t, idx.Upsert(ctx, "docs", chunks, vectors))
	assert.EqualValues(t, 3, counted)

	hits, err := idx.Query(ctx, "docs", []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3, "top_k larger than the collection returns every point")
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "east", hits[0].Text)
	assert.Equal(t, "c", hits[1].ID)
	assert.Equal(t, "b", hits[2].ID)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
	}
	assert.NotContains(t, hits[0].Metadata, model.PayloadText)
	assert.Equal(t, "d1", hits[0].Metadata[model.MetaDocumentID])

	hits, err = idx.Query(ctx, "docs", []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	hits, err = idx.Query(ctx, "docs", []float32{1, 0}, 5, map[string]any{model.MetaDocumentID: "d1", model.MetaPage: 2})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
}

func TestUpsertIsIdempotent(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	ctx := context.Background()

	chunks := []model.Chunk{chunk("a", "d1", 1, "first")}
	require.NoError(t, idx.Upsert(ctx, "docs", chunks, [][]float32{{1, 0}}))
	chunks[0].Text = "second"
	require.NoError(t, idx.Upsert(ctx, "docs", chunks, [][]float32{{0, 1}}))

	n, err := idx.Count(ctx, "docs")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	hits, err := idx.Query(ctx, "docs", []float32{0, 1}, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", hits[0].Text)
}

func TestQueryCreatesMissingCollection(t *testing.T) {
	idx, backend := newTestIndex(t, 2)
	ctx := context.Background()

	hits, err := idx.Query(ctx, "fresh", []float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)

	names, _ := backend.ListCollections(ctx)
	assert.Equal(t, []string{"fresh"}, names)
}

func TestQueryInvalidTopK(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	_, err := idx.Query(context.Background(), "docs", []float32{1, 0}, 0, nil)
	assert.True(t, errors.IsCode(err, errors.ErrRAGValidation.Code))
}

func TestExistingCollectionDimensionWins(t *testing.T) {
	backend := NewMemoryBackend()
	ctx := context.Background()
	_, err := backend.CreateCollection(ctx, "docs", 4)
	require.NoError(t, err)

	idx := NewIndex(backend, Config{Dimension: 2})
	h, err := idx.EnsureCollection(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 4, h.Dimension)

	err = idx.Upsert(ctx, "docs", []model.Chunk{chunk("a", "d", 1, "x")}, [][]float32{{1, 0}})
	assert.True(t, errors.IsCode(err, errors.ErrRAGVectorStore.Code))
}

func TestDeleteDocumentAndCollection(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	ctx := context.Background()

	chunks := []model.Chunk{chunk("a", "d1", 1, "x"), chunk("b", "d1", 2, "y"), chunk("c", "d2", 1, "z")}
	require.NoError(t, idx.Upsert(ctx, "docs", chunks, [][]float32{{1, 0}, {0, 1}, {1, 1}}))

	removed, err := idx.DeleteDocument(ctx, "docs", "d1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, removed)

	n, err := idx.Count(ctx, "docs")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	removed, err = idx.DeleteDocument(ctx, "docs", "missing")
	require.NoError(t, err)
	assert.Zero(t, removed)

	require.NoError(t, idx.DeleteCollection(ctx, "docs"))
	_, err = idx.Count(ctx, "docs")
	assert.True(t, errors.IsCode(err, errors.ErrRAGCollectionNotFound.Code))

	names, err := idx.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestListCollectionsSorted(t *testing.T) {
	idx, _ := newTestIndex(t, 2)
	ctx := context.Background()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := idx.EnsureCollection(ctx, name)
		require.NoError(t, err)
	}
	names, err := idx.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

// faultyBackend wraps MemoryBackend with injectable failures.
type faultyBackend struct {
	*MemoryBackend
	creates   atomic.Int32
	searchErr error
	delay     time.Duration
}

func (f *faultyBackend) CreateCollection(ctx context.Context, name string, dim int) (int, error) {
	f.creates.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.MemoryBackend.CreateCollection(ctx, name, dim)
}

func (f *faultyBackend) Search(ctx context.Context, c string, v []float32, k int, flt map[string]any) ([]Hit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.MemoryBackend.Search(ctx, c, v, k, flt)
}

func TestBackendErrorIsNormalized(t *testing.T) {
	backend := &faultyBackend{MemoryBackend: NewMemoryBackend(), searchErr: fmt.Errorf("connection refused")}
	idx := NewIndex(backend, Config{Dimension: 2, Timeout: time.Second})

	var ops []string
	idx.SetHooks(Hooks{OnOperation: func(op string, err error) {
		if err != nil {
			ops = append(ops, op)
		}
	}})

	_, err := idx.Query(context.Background(), "docs", []float32{1, 0}, 3, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGVectorStore.Code))
	assert.Contains(t, err.Error(), "query docs")
	assert.Equal(t, []string{OpQuery}, ops)
}

func TestTimeoutIsVectorStoreError(t *testing.T) {
	backend := &faultyBackend{MemoryBackend: NewMemoryBackend(), delay: time.Second}
	idx := NewIndex(backend, Config{Dimension: 2, Timeout: 20 * time.Millisecond})

	_, err := idx.EnsureCollection(context.Background(), "docs")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrRAGVectorStore.Code))
	assert.True(t, stderrors.Is(err, context.DeadlineExceeded))
}

func TestEnsureCollectionConcurrent(t *testing.T) {
	backend := &faultyBackend{MemoryBackend: NewMemoryBackend(), delay: 20 * time.Millisecond}
	idx := NewIndex(backend, Config{Dimension: 2, Timeout: time.Second})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := idx.EnsureCollection(context.Background(), "docs")
			assert.NoError(t, err)
			assert.Equal(t, 2, h.Dimension)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, backend.creates.Load())
}

func TestEnsureCollectionIgnoresCancelledLeader(t *testing.T) {
	backend := &faultyBackend{MemoryBackend: NewMemoryBackend(), delay: 100 * time.Millisecond}
	idx := NewIndex(backend, Config{Dimension: 2, Timeout: time.Second})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan error, 1)
	go func() {
		_, err := idx.EnsureCollection(leaderCtx, "docs")
		leaderDone <- err
	}()

	time.Sleep(10 * time.Millisecond)
	followerDone := make(chan error, 1)
	go func() {
		_, err := idx.EnsureCollection(context.Background(), "docs")
		followerDone <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	assert.NoError(t, <-followerDone)
	assert.NoError(t, <-leaderDone)
	assert.EqualValues(t, 1, backend.creates.Load())
}

func TestMatchFilter(t *testing.T) {
	payload := map[string]any{"page": float64(2), "filename": "a.pdf"}
	assert.True(t, matchFilter(payload, nil))
	assert.True(t, matchFilter(payload, map[string]any{"page": 2}))
	assert.True(t, matchFilter(payload, map[string]any{"page": 2, "filename": "a.pdf"}))
	assert.False(t, matchFilter(payload, map[string]any{"page": 3}))
	assert.False(t, matchFilter(payload, map[string]any{"missing": "x"}))
}
