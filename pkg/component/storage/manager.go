package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/pdfrag/pkg/infra/pool"
)

type entry struct {
	name   string
	client Client
}

// Manager keeps the backend clients of a running service.
// Clients are closed in reverse registration order. It is safe for
// concurrent use.
//
//	mgr := storage.NewManager()
//	mgr.Register("vector_store", qdrantClient)
//	mgr.Register("redis", redisClient)
//	statuses := mgr.HealthCheckAll(ctx)
//	defer mgr.CloseAll()
type Manager struct {
	mu      sync.RWMutex
	entries []entry
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds client under a unique, non-empty name.
func (m *Manager) Register(name string, client Client) error {
	switch {
	case name == "":
		return errors.New("storage: client name cannot be empty")
	case client == nil:
		return fmt.Errorf("storage: client %q is nil", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.name == name {
			return fmt.Errorf("storage: client %q is already registered", name)
		}
	}
	m.entries = append(m.entries, entry{name: name, client: client})
	return nil
}

// List returns the sorted names of all registered clients.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.name
	}
	sort.Strings(names)
	return names
}

func (m *Manager) snapshot() []entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]entry(nil), m.entries...)
}

// HealthCheckAll pings every client concurrently and waits for all of them.
// 优先提交到健康检查协程池，池不可用或已满时直接起 goroutine。
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]HealthStatus {
	entries := m.snapshot()
	results := make([]HealthStatus, len(entries))

	var wg sync.WaitGroup
	hp, _ := pool.GetByType(pool.HealthCheckPool)
	for i, e := range entries {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			results[i] = check(ctx, e)
		}
		if hp == nil || hp.Submit(task) != nil {
			go task()
		}
	}
	wg.Wait()

	statuses := make(map[string]HealthStatus, len(results))
	for _, st := range results {
		statuses[st.Name] = st
	}
	return statuses
}

func check(ctx context.Context, e entry) HealthStatus {
	start := time.Now()
	err := e.client.Ping(ctx)
	return HealthStatus{
		Name:    e.name,
		Healthy: err == nil,
		Latency: time.Since(start),
		Error:   err,
	}
}

// CloseAll closes and forgets every client. All clients are closed even if
// some fail; the failures are aggregated.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	entries := m.entries
	m.entries = nil
	m.mu.Unlock()

	var errs []error
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := e.client.Close(); err != nil {
			logger.Warnw("failed to close storage client", "name", e.name, "backend", e.client.Name(), "error", err.Error())
			errs = append(errs, fmt.Errorf("close %s: %w", e.name, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}
