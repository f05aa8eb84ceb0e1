package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a test implementation of the Client interface.
type mockClient struct {
	name     string
	healthy  bool
	closed   bool
	closeErr error
	order    *[]string
}

func (m *mockClient) Name() string { return m.name }

func (m *mockClient) Ping(context.Context) error {
	if !m.healthy {
		return context.DeadlineExceeded
	}
	return nil
}

func (m *mockClient) Close() error {
	m.closed = true
	if m.order != nil {
		*m.order = append(*m.order, m.name)
	}
	return m.closeErr
}

var _ Client = (*mockClient)(nil)

func TestManagerRegister(t *testing.T) {
	mgr := NewManager()

	require.NoError(t, mgr.Register("redis", &mockClient{name: "redis"}))
	assert.Error(t, mgr.Register("redis", &mockClient{name: "redis"}))
	assert.Error(t, mgr.Register("", &mockClient{}))
	assert.Error(t, mgr.Register("nil", nil))

	require.NoError(t, mgr.Register("vector_store", &mockClient{name: "qdrant"}))
	assert.Equal(t, []string{"redis", "vector_store"}, mgr.List())
}

func TestHealthCheckAll(t *testing.T) {
	mgr := NewManager()
	require.NoError(t, mgr.Register("up", &mockClient{name: "up", healthy: true}))
	require.NoError(t, mgr.Register("down", &mockClient{name: "down"}))

	statuses := mgr.HealthCheckAll(context.Background())
	require.Len(t, statuses, 2)
	assert.True(t, statuses["up"].Healthy)
	assert.Equal(t, "healthy", statuses["up"].State())
	assert.False(t, statuses["down"].Healthy)
	assert.Contains(t, statuses["down"].State(), "unhealthy")
}

func TestCloseAll(t *testing.T) {
	var order []string
	mgr := NewManager()
	a := &mockClient{name: "a", order: &order}
	b := &mockClient{name: "b", closeErr: errors.New("boom"), order: &order}
	c := &mockClient{name: "c", order: &order}
	require.NoError(t, mgr.Register("a", a))
	require.NoError(t, mgr.Register("b", b))
	require.NoError(t, mgr.Register("c", c))

	err := mgr.CloseAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close b: boom")
	assert.Equal(t, []string{"c", "b", "a"}, order)
	assert.Empty(t, mgr.List())
	assert.NoError(t, mgr.CloseAll())
}
