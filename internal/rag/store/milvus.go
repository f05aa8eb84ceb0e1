package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/pkg/component/milvus"
	"github.com/kart-io/pdfrag/pkg/utils/json"
)

var _ Backend = (*MilvusBackend)(nil)

// MilvusBackend 基于 Milvus 实现向量存储。
// 文本存放在独立的 VarChar 字段，其余 payload 以 JSON 形式存放在 metadata 字段。
type MilvusBackend struct {
	*milvus.Client
}

// NewMilvusBackend wraps an existing Milvus client.
func NewMilvusBackend(client *milvus.Client) *MilvusBackend {
	return &MilvusBackend{Client: client}
}

func (m *MilvusBackend) exists(ctx context.Context, collection string) error {
	ok, err := m.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return nil
}

func (m *MilvusBackend) CreateCollection(ctx context.Context, name string, dimension int) (int, error) {
	return m.EnsureCollection(ctx, name, dimension)
}

func (m *MilvusBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	rows := make([]milvus.Row, len(points))
	for i, p := range points {
		text, meta := splitPayload(p.Payload)
		data, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", p.ID, err)
		}
		rows[i] = milvus.Row{ID: p.ID, Vector: p.Vector, Text: text, Metadata: data}
	}
	return m.Client.Upsert(ctx, collection, rows)
}

func (m *MilvusBackend) Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Hit, error) {
	if err := m.exists(ctx, collection); err != nil {
		return nil, err
	}
	results, err := m.Client.Search(ctx, collection, vector, topK, FilterExpr(filter))
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		meta := map[string]any{}
		if len(r.Metadata) > 0 {
			if err := json.Unmarshal(r.Metadata, &meta); err != nil {
				return nil, fmt.Errorf("invalid metadata on %s: %w", r.ID, err)
			}
		}
		hits = append(hits, Hit{
			ID:       r.ID,
			Text:     r.Text,
			Metadata: meta,
			Distance: 1 - float64(r.Score),
		})
	}
	return hits, nil
}

func (m *MilvusBackend) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	if err := m.exists(ctx, collection); err != nil {
		return 0, err
	}
	return m.Client.Count(ctx, collection, FilterExpr(filter))
}

func (m *MilvusBackend) Delete(ctx context.Context, collection string, filter map[string]any) error {
	if err := m.exists(ctx, collection); err != nil {
		return err
	}
	expr := FilterExpr(filter)
	if expr == "" {
		// Milvus 删除必须带表达式
		expr = fmt.Sprintf(`%s != ""`, milvus.FieldID)
	}
	return m.Client.Delete(ctx, collection, expr)
}

func (m *MilvusBackend) DropCollection(ctx context.Context, collection string) error {
	ok, err := m.HasCollection(ctx, collection)
	if err != nil || !ok {
		return err
	}
	return m.Client.DropCollection(ctx, collection)
}

// FilterExpr renders an equality filter as a Milvus boolean expression over
// the JSON metadata field, e.g. metadata["page"] == 2 && metadata["filename"] == "a.pdf".
// Keys are sorted so the expression is stable.
func FilterExpr(filter map[string]any) string {
	if len(filter) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		field := fmt.Sprintf("%s[%s]", milvus.FieldMetadata, strconv.Quote(k))
		if k == model.PayloadText {
			field = milvus.FieldText
		}
		parts = append(parts, fmt.Sprintf("%s == %s", field, exprLiteral(filter[k])))
	}
	return strings.Join(parts, " && ")
}

func exprLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	case int, int32, int64, float32, float64:
		return fmt.Sprint(x)
	default:
		return strconv.Quote(fmt.Sprint(x))
	}
}
