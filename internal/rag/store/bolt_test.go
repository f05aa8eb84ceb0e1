package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/pdfrag/internal/model"
)

func TestBoltBackendPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")
	ctx := context.Background()

	backend, err := OpenBoltBackend(path)
	require.NoError(t, err)
	require.NoError(t, backend.Ping(ctx))

	idx := NewIndex(backend, Config{Dimension: 2})
	chunks := []model.Chunk{chunk("a", "d1", 1, "alpha"), chunk("b", "d2", 3, "beta")}
	require.NoError(t, idx.Upsert(ctx, "docs", chunks, [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, backend.Close())

	reopened, err := OpenBoltBackend(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	names, err := reopened.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"docs"}, names)

	dim, err := reopened.CreateCollection(ctx, "docs", 8)
	require.NoError(t, err)
	assert.Equal(t, 2, dim, "existing collection keeps its dimension")

	hits, err := reopened.Search(ctx, "docs", []float32{0, 1}, 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "b", hits[0].ID)
	assert.Equal(t, "beta", hits[0].Text)
	assert.Equal(t, 3, model.PageOf(hits[0].Metadata))

	hits, err = reopened.Search(ctx, "docs", []float32{0, 1}, 5, map[string]any{model.MetaPage: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestBoltBackendDelete(t *testing.T) {
	ctx := context.Background()
	backend, err := OpenBoltBackend(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	_, err = backend.CreateCollection(ctx, "docs", 2)
	require.NoError(t, err)
	require.NoError(t, backend.Upsert(ctx, "docs", []Point{
		{ID: "a", Vector: []float32{1, 0}, Payload: map[string]any{model.MetaDocumentID: "d1", model.PayloadText: "x"}},
		{ID: "b", Vector: []float32{0, 1}, Payload: map[string]any{model.MetaDocumentID: "d2", model.PayloadText: "y"}},
	}))

	require.NoError(t, backend.Delete(ctx, "docs", map[string]any{model.MetaDocumentID: "d1"}))
	n, err := backend.Count(ctx, "docs", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, backend.DropCollection(ctx, "docs"))
	_, err = backend.Count(ctx, "docs", nil)
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	_, err = backend.CreateCollection(ctx, string(metaBucket), 2)
	assert.Error(t, err)
}

func TestMemoryBackendMissingCollection(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	err := backend.Upsert(ctx, "nope", []Point{{ID: "a", Vector: []float32{1}}})
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	_, err = backend.Search(ctx, "nope", []float32{1}, 1, nil)
	assert.ErrorIs(t, err, ErrCollectionNotFound)

	assert.NoError(t, backend.DropCollection(ctx, "nope"))
}
