package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kart-io/pdfrag/internal/pkg/rag/textutil"
)

var _ Backend = (*MemoryBackend)(nil)

type memoryCollection struct {
	dimension int
	order     []string
	points    map[string]Point
}

func newMemoryCollection(dimension int) *memoryCollection {
	return &memoryCollection{dimension: dimension, points: make(map[string]Point)}
}

func (c *memoryCollection) put(p Point) {
	if _, ok := c.points[p.ID]; !ok {
		c.order = append(c.order, p.ID)
	}
	c.points[p.ID] = p
}

func (c *memoryCollection) remove(id string) {
	delete(c.points, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// search scores every point by brute force.
func (c *memoryCollection) search(vector []float32, topK int, filter map[string]any) []Hit {
	hits := make([]Hit, 0, len(c.points))
	for _, id := range c.order {
		p := c.points[id]
		if !matchFilter(p.Payload, filter) {
			continue
		}
		text, meta := splitPayload(p.Payload)
		hits = append(hits, Hit{
			ID:       p.ID,
			Text:     text,
			Metadata: meta,
			Distance: 1 - textutil.CosineSimilarity(vector, p.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func (c *memoryCollection) count(filter map[string]any) int64 {
	if len(filter) == 0 {
		return int64(len(c.points))
	}
	var n int64
	for _, p := range c.points {
		if matchFilter(p.Payload, filter) {
			n++
		}
	}
	return n
}

// MemoryBackend 是进程内的向量库实现，适用于测试和单机演示。
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{collections: make(map[string]*memoryCollection)}
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Ping(context.Context) error { return nil }

func (m *MemoryBackend) Close() error { return nil }

func (m *MemoryBackend) CreateCollection(_ context.Context, name string, dimension int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		return c.dimension, nil
	}
	m.collections[name] = newMemoryCollection(dimension)
	return dimension, nil
}

func (m *MemoryBackend) collection(name string) (*memoryCollection, error) {
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

func (m *MemoryBackend) Upsert(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		c.put(p)
	}
	return nil
}

func (m *MemoryBackend) Search(_ context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return nil, err
	}
	return c.search(vector, topK, filter), nil
}

func (m *MemoryBackend) Count(_ context.Context, collection string, filter map[string]any) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.collection(collection)
	if err != nil {
		return 0, err
	}
	return c.count(filter), nil
}

func (m *MemoryBackend) Delete(_ context.Context, collection string, filter map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.collection(collection)
	if err != nil {
		return err
	}
	for id, p := range c.points {
		if matchFilter(p.Payload, filter) {
			c.remove(id)
		}
	}
	return nil
}

func (m *MemoryBackend) DropCollection(_ context.Context, collection string) error {
	m.mu.Lock()
	delete(m.collections, collection)
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) ListCollections(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	return names, nil
}
