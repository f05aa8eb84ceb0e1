package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kart-io/pdfrag/pkg/utils/json"
)

var _ Backend = (*BoltBackend)(nil)

// metaBucket stores the dimension of every collection keyed by collection name.
var metaBucket = []byte("__collections__")

type boltRecord struct {
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// BoltBackend 将集合持久化到本地 bbolt 文件，每个集合一个 bucket。
// 打开时整体加载到内存镜像，检索在镜像上进行，写操作先落盘再更新镜像。
type BoltBackend struct {
	db *bolt.DB

	mu     sync.RWMutex
	mirror map[string]*memoryCollection
}

// OpenBoltBackend opens (or creates) the database at path and loads it into memory.
func OpenBoltBackend(path string) (*BoltBackend, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create bolt directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %s: %w", path, err)
	}

	b := &BoltBackend{db: db, mirror: make(map[string]*memoryCollection)}
	if err := b.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

func (b *BoltBackend) load() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(metaBucket)
		if err != nil {
			return err
		}
		return meta.ForEach(func(k, v []byte) error {
			dim, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("invalid dimension for collection %s: %w", k, err)
			}
			c := newMemoryCollection(dim)
			bucket := tx.Bucket(k)
			if bucket != nil {
				if err := bucket.ForEach(func(id, data []byte) error {
					var rec boltRecord
					if err := json.Unmarshal(data, &rec); err != nil {
						return fmt.Errorf("invalid record %s in %s: %w", id, k, err)
					}
					c.put(Point{ID: string(id), Vector: rec.Vector, Payload: rec.Payload})
					return nil
				}); err != nil {
					return err
				}
			}
			b.mirror[string(k)] = c
			return nil
		})
	})
}

func (b *BoltBackend) Name() string { return "bolt" }

func (b *BoltBackend) Ping(context.Context) error {
	return b.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(metaBucket) == nil {
			return fmt.Errorf("bolt database is not initialized")
		}
		return nil
	})
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}

func (b *BoltBackend) CreateCollection(_ context.Context, name string, dimension int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.mirror[name]; ok {
		return c.dimension, nil
	}
	if name == string(metaBucket) {
		return 0, fmt.Errorf("collection name %s is reserved", name)
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(metaBucket).Put([]byte(name), []byte(strconv.Itoa(dimension)))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	b.mirror[name] = newMemoryCollection(dimension)
	return dimension, nil
}

func (b *BoltBackend) collection(name string) (*memoryCollection, error) {
	c, ok := b.mirror[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

func (b *BoltBackend) Upsert(_ context.Context, collection string, points []Point) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.collection(collection)
	if err != nil {
		return err
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		for _, p := range points {
			data, err := json.Marshal(boltRecord{Vector: p.Vector, Payload: p.Payload})
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(p.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, p := range points {
		c.put(p)
	}
	return nil
}

func (b *BoltBackend) Search(_ context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Hit, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, err := b.collection(collection)
	if err != nil {
		return nil, err
	}
	return c.search(vector, topK, filter), nil
}

func (b *BoltBackend) Count(_ context.Context, collection string, filter map[string]any) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, err := b.collection(collection)
	if err != nil {
		return 0, err
	}
	return c.count(filter), nil
}

func (b *BoltBackend) Delete(_ context.Context, collection string, filter map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, err := b.collection(collection)
	if err != nil {
		return err
	}

	var ids []string
	for id, p := range c.points {
		if matchFilter(p.Payload, filter) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(collection))
		if bucket == nil {
			return nil
		}
		for _, id := range ids {
			if err := bucket.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		c.remove(id)
	}
	return nil
}

func (b *BoltBackend) DropCollection(_ context.Context, collection string) error {
	if collection == string(metaBucket) {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	err := b.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(collection)) != nil {
			if err := tx.DeleteBucket([]byte(collection)); err != nil {
				return err
			}
		}
		return tx.Bucket(metaBucket).Delete([]byte(collection))
	})
	if err != nil {
		return err
	}
	delete(b.mirror, collection)
	return nil
}

func (b *BoltBackend) ListCollections(context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.mirror))
	for name := range b.mirror {
		names = append(names, name)
	}
	return names, nil
}
