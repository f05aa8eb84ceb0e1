package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/pdfrag/internal/model"
	"github.com/kart-io/pdfrag/pkg/component/postgres"
	"github.com/kart-io/pdfrag/pkg/utils/json"
)

var _ Backend = (*PGVectorBackend)(nil)

// collectionRecord is one row of the collection registry table.
type collectionRecord struct {
	Name      string `gorm:"column:name;primaryKey"`
	Dimension int    `gorm:"column:dimension;not null"`
}

type pgHit struct {
	ID       string  `gorm:"column:id"`
	Text     string  `gorm:"column:text"`
	Metadata string  `gorm:"column:metadata"`
	Distance float64 `gorm:"column:distance"`
}

// PGVectorBackend 基于 PostgreSQL + pgvector 实现向量存储。
// 每个集合对应一张表，集合及其维度登记在 {prefix}collections 表中。
type PGVectorBackend struct {
	*postgres.Client

	db     *gorm.DB
	prefix string
}

// NewPGVectorBackend enables the vector extension and prepares the collection registry.
func NewPGVectorBackend(ctx context.Context, client *postgres.Client) (*PGVectorBackend, error) {
	b := &PGVectorBackend{
		Client: client,
		db:     client.DB(),
		prefix: client.Options().TablePrefix,
	}

	db := b.db.WithContext(ctx)
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("failed to enable pgvector extension: %w", err)
	}
	if err := db.Table(b.registryTable()).AutoMigrate(&collectionRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate collection registry: %w", err)
	}
	return b, nil
}

func (b *PGVectorBackend) registryTable() string {
	return b.prefix + "collections"
}

// tableName returns the quoted table name holding collection.
func (b *PGVectorBackend) tableName(collection string) string {
	return quoteIdent(b.prefix + "c_" + collection)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (b *PGVectorBackend) lookup(ctx context.Context, collection string) (*collectionRecord, error) {
	var rec collectionRecord
	res := b.db.WithContext(ctx).Table(b.registryTable()).Where("name = ?", collection).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	return &rec, nil
}

func (b *PGVectorBackend) CreateCollection(ctx context.Context, name string, dimension int) (int, error) {
	var dim int
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec := collectionRecord{Name: name, Dimension: dimension}
		if err := tx.Table(b.registryTable()).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
			return err
		}

		var existing collectionRecord
		if err := tx.Table(b.registryTable()).Where("name = ?", name).First(&existing).Error; err != nil {
			return err
		}
		dim = existing.Dimension

		ddl := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, embedding vector(%d) NOT NULL, text TEXT NOT NULL, metadata JSONB NOT NULL DEFAULT '{}')",
			b.tableName(name), dim)
		return tx.Exec(ddl).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return dim, nil
}

func (b *PGVectorBackend) Upsert(ctx context.Context, collection string, points []Point) error {
	if _, err := b.lookup(ctx, collection); err != nil {
		return err
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (id, embedding, text, metadata) VALUES (?, ?, ?, ?::jsonb) "+
			"ON CONFLICT (id) DO UPDATE SET embedding = EXCLUDED.embedding, text = EXCLUDED.text, metadata = EXCLUDED.metadata",
		b.tableName(collection))

	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range points {
			text, meta := splitPayload(p.Payload)
			data, err := json.Marshal(meta)
			if err != nil {
				return fmt.Errorf("failed to encode metadata for %s: %w", p.ID, err)
			}
			if err := tx.Exec(stmt, p.ID, pgvector.NewVector(p.Vector), text, string(data)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *PGVectorBackend) Search(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Hit, error) {
	if _, err := b.lookup(ctx, collection); err != nil {
		return nil, err
	}

	where, args, err := pgWhere(filter)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		"SELECT id, text, metadata::text AS metadata, embedding <=> ?::vector AS distance FROM %s%s ORDER BY distance LIMIT ?",
		b.tableName(collection), where)
	params := append([]any{pgvector.NewVector(vector)}, args...)
	params = append(params, topK)

	var rows []pgHit
	if err := b.db.WithContext(ctx).Raw(query, params...).Scan(&rows).Error; err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(rows))
	for _, r := range rows {
		meta := map[string]any{}
		if r.Metadata != "" {
			if err := json.Unmarshal([]byte(r.Metadata), &meta); err != nil {
				return nil, fmt.Errorf("invalid metadata on %s: %w", r.ID, err)
			}
		}
		hits = append(hits, Hit{ID: r.ID, Text: r.Text, Metadata: meta, Distance: r.Distance})
	}
	return hits, nil
}

func (b *PGVectorBackend) Count(ctx context.Context, collection string, filter map[string]any) (int64, error) {
	if _, err := b.lookup(ctx, collection); err != nil {
		return 0, err
	}
	where, args, err := pgWhere(filter)
	if err != nil {
		return 0, err
	}

	var n int64
	query := fmt.Sprintf("SELECT count(*) FROM %s%s", b.tableName(collection), where)
	if err := b.db.WithContext(ctx).Raw(query, args...).Scan(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (b *PGVectorBackend) Delete(ctx context.Context, collection string, filter map[string]any) error {
	if _, err := b.lookup(ctx, collection); err != nil {
		return err
	}
	where, args, err := pgWhere(filter)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf("DELETE FROM %s%s", b.tableName(collection), where)
	return b.db.WithContext(ctx).Exec(stmt, args...).Error
}

func (b *PGVectorBackend) DropCollection(ctx context.Context, collection string) error {
	return b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", b.tableName(collection))).Error; err != nil {
			return err
		}
		return tx.Table(b.registryTable()).Where("name = ?", collection).Delete(&collectionRecord{}).Error
	})
}

func (b *PGVectorBackend) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	if err := b.db.WithContext(ctx).Table(b.registryTable()).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// pgWhere builds the WHERE clause of an equality filter: the text key is
// compared against the text column, every other key through JSONB containment.
func pgWhere(filter map[string]any) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}

	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		conds []string
		args  []any
		meta  = map[string]any{}
	)
	for _, k := range keys {
		if k == model.PayloadText {
			conds = append(conds, "text = ?")
			args = append(args, fmt.Sprint(filter[k]))
			continue
		}
		meta[k] = filter[k]
	}
	if len(meta) > 0 {
		data, err := json.Marshal(meta)
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode filter: %w", err)
		}
		conds = append(conds, "metadata @> ?::jsonb")
		args = append(args, string(data))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}
