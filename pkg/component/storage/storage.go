package storage

import (
	"context"
	"time"
)

// Client is the contract shared by all backend clients.
type Client interface {
	// Name returns the backend type identifier, e.g. "redis".
	Name() string

	// Ping verifies that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// HealthStatus is the outcome of one health check.
type HealthStatus struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   error         `json:"-"`
}

// State 返回健康检查结果的文本表示。
func (s HealthStatus) State() string {
	if s.Healthy {
		return "healthy"
	}
	if s.Error != nil {
		return "unhealthy: " + s.Error.Error()
	}
	return "unhealthy"
}
