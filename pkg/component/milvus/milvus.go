// Package milvus wraps the Milvus v2 SDK for the pdfrag vector index.
//
// Every collection uses the same schema: a VarChar primary key "id", a
// FloatVector "embedding", a VarChar "text" and a JSON "metadata" field.
package milvus

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kart-io/pdfrag/pkg/component/storage"
	milvusopts "github.com/kart-io/pdfrag/pkg/options/milvus"
)

// Field names of the collection schema.
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
	FieldText      = "text"
	FieldMetadata  = "metadata"

	maxIDLength   = 64
	maxTextLength = 65535
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

var _ storage.Client = (*Client)(nil)

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{
		client: c,
		opts:   opts,
	}, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "milvus"
}

// Ping checks the connection by listing collections.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
	return err
}

// Close closes the Milvus client connection.
func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Close(ctx)
}

// EnsureCollection creates the collection with a cosine index when it does
// not exist, then loads it. It returns the dimension of the collection,
// which for an existing collection comes from its schema.
func (c *Client) EnsureCollection(ctx context.Context, name string, dimension int) (int, error) {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
	if err != nil {
		return 0, fmt.Errorf("failed to check collection existence: %w", err)
	}

	if exists {
		dim, err := c.dimension(ctx, name)
		if err != nil {
			return 0, err
		}
		return dim, c.load(ctx, name)
	}

	schema := entity.NewSchema().
		WithName(name).
		WithDescription("pdfrag document chunks").
		WithAutoID(false).
		WithField(entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxIDLength).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dimension))).
		WithField(entity.NewField().
			WithName(FieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(maxTextLength)).
		WithField(entity.NewField().
			WithName(FieldMetadata).
			WithDataType(entity.FieldTypeJSON))

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(name, schema)); err != nil {
		return 0, fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createIdxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, FieldEmbedding, idx))
	if err != nil {
		return 0, fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return 0, fmt.Errorf("failed to wait for index creation: %w", err)
	}

	return dimension, c.load(ctx, name)
}

func (c *Client) load(ctx context.Context, name string) error {
	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

func (c *Client) dimension(ctx context.Context, name string) (int, error) {
	coll, err := c.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(name))
	if err != nil {
		return 0, fmt.Errorf("failed to describe collection: %w", err)
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != FieldEmbedding {
			continue
		}
		dim, err := strconv.Atoi(f.TypeParams[entity.TypeParamDim])
		if err != nil {
			return 0, fmt.Errorf("invalid dimension on collection %s: %w", name, err)
		}
		return dim, nil
	}
	return 0, fmt.Errorf("collection %s has no %s field", name, FieldEmbedding)
}

// Row is one point written to a collection. Metadata is JSON encoded.
type Row struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata []byte
}

// Upsert writes rows, replacing any existing rows with the same id, and
// flushes so they are visible to the next search.
func (c *Client) Upsert(ctx context.Context, name string, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	ids := make([]string, len(rows))
	vectors := make([][]float32, len(rows))
	texts := make([]string, len(rows))
	metas := make([][]byte, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
		vectors[i] = r.Vector
		texts[i] = r.Text
		metas[i] = r.Metadata
	}

	opt := milvusclient.NewColumnBasedInsertOption(name,
		column.NewColumnVarChar(FieldID, ids),
		column.NewColumnFloatVector(FieldEmbedding, len(vectors[0]), vectors),
		column.NewColumnVarChar(FieldText, texts),
		column.NewColumnJSONBytes(FieldMetadata, metas),
	)
	if _, err := c.client.Upsert(ctx, opt); err != nil {
		return fmt.Errorf("failed to upsert data: %w", err)
	}

	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(name))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

// Hit is one search result. Score is the cosine similarity.
type Hit struct {
	ID       string
	Score    float32
	Text     string
	Metadata []byte
}

// Search performs a cosine similarity search restricted by a boolean filter
// expression (empty for none).
func (c *Client) Search(ctx context.Context, name string, vector []float32, topK int, filter string) ([]Hit, error) {
	opt := milvusclient.NewSearchOption(name, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldEmbedding).
		WithSearchParam("nprobe", "16").
		WithOutputFields(FieldText, FieldMetadata)
	if filter != "" {
		opt = opt.WithFilter(filter)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []Hit{}, nil
	}

	rs := results[0]
	hits := make([]Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := Hit{Score: rs.Scores[i]}
		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			hit.ID = idCol.Data()[i]
		}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				if col.Name() == FieldText {
					hit.Text = col.Data()[i]
				}
			case *column.ColumnJSONBytes:
				if col.Name() == FieldMetadata {
					hit.Metadata = col.Data()[i]
				}
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of rows matching filter (all rows when empty).
func (c *Client) Count(ctx context.Context, name, filter string) (int64, error) {
	opt := milvusclient.NewQueryOption(name).WithOutputFields("count(*)")
	if filter != "" {
		opt = opt.WithFilter(filter)
	}

	rs, err := c.client.Query(ctx, opt)
	if err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	col, ok := rs.GetColumn("count(*)").(*column.ColumnInt64)
	if !ok || col.Len() == 0 {
		return 0, nil
	}
	return col.Data()[0], nil
}

// Delete removes rows matching filter.
func (c *Client) Delete(ctx context.Context, name, filter string) error {
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(name).WithExpr(filter)); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, name string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(name)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// HasCollection reports whether a collection exists.
func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	return c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
}

// ListCollections returns the names of all collections.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	names, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}
