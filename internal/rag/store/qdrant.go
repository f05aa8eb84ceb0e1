package store

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kart-io/pdfrag/pkg/component/qdrant"
	"github.com/kart-io/pdfrag/pkg/utils/httpclient"
)

var _ Backend = (*QdrantBackend)(nil)

// QdrantBackend adapts the Qdrant REST client to Backend.
type QdrantBackend struct {
	*qdrant.Client
}

// NewQdrantBackend wraps an existing Qdrant client.
func NewQdrantBackend(client *qdrant.Client) *QdrantBackend {
	return &QdrantBackend{Client: client}
}

// notFound maps a 404 answer to ErrCollectionNotFound.
func notFound(collection string, err error) error {
	if httpclient.IsStatus(err, http.StatusNotFound) {
		return fmt.Errorf("%w: %s: %v", ErrCollectionNotFound, collection, err)
	}
	return err
}

func (q *QdrantBackend) CreateCollection(ctx context.Context, name string, dimension int) (int, error) {
	dim, exists, err := q.CollectionDimension(ctx, name)
	if err != nil {
		return 0, err
	}
	if exists {
		return dim, nil
	}
	if err := q.Client.CreateCollection(ctx, name, dimension); err != nil {
		return 0, err
	}

	// 并发创建时集合可能已由其他实例以不同维度创建，以实际维度为准
	dim, exists, err = q.CollectionDimension(ctx, name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return dimension, nil
	}
	return dim, nil
}

func (q *QdrantBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	qp := make([]qdrant.Point, len(points))
	for i, p := range points {
		qp[i] = qdrant.Point{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	return notFound(collection, q.Client.Upsert(ctx, collection, qp))
}

func (q *QdrantBackend) Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Hit, error) {
	scored, err := q.Client.Search(ctx, collection, vector, topK, qdrant.NewFilter(filter))
	if err != nil {
		return nil, notFound(collection, err)
	}

	hits := make([]Hit, 0, len(scored))
	for _, sp := range scored {
		text, meta := splitPayload(sp.Payload)
		hits = append(hits, Hit{
			ID:       fmt.Sprint(sp.ID),
			Text:     text,
			Metadata: meta,
			Distance: 1 - sp.Score,
		})
	}
	return hits, nil
}

func (q *QdrantBackend) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	n, err := q.Client.Count(ctx, collection, qdrant.NewFilter(filter))
	return n, notFound(collection, err)
}

func (q *QdrantBackend) Delete(ctx context.Context, collection string, filter map[string]any) error {
	return notFound(collection, q.DeletePoints(ctx, collection, qdrant.NewFilter(filter)))
}

func (q *QdrantBackend) DropCollection(ctx context.Context, collection string) error {
	return q.Client.DeleteCollection(ctx, collection)
}
