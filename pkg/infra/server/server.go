// Package server runs the pdfrag HTTP server and any other long-running
// components under one lifecycle with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

// Runnable is a named long-running component.
//
// Start must return once the component accepts work. Components that can fail
// after starting may also implement Errors() <-chan error; a value received
// there triggers shutdown of the whole Manager.
type Runnable interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager runs a set of servers with a unified lifecycle.
type Manager struct {
	shutdownTimeout time.Duration

	mu      sync.Mutex
	servers []Runnable
	started []Runnable
}

// Option configures a Manager.
type Option func(*Manager)

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.shutdownTimeout = d
		}
	}
}

// NewManager creates a new server manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{shutdownTimeout: 15 * time.Second}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddServer adds a server to the manager. Servers start in the order added
// and stop in reverse order.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// Start starts all servers. If one fails, those already started are stopped.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.started) > 0 {
		return fmt.Errorf("server manager already started")
	}

	for _, srv := range m.servers {
		if err := srv.Start(ctx); err != nil {
			_ = m.stopLocked(ctx)
			return fmt.Errorf("failed to start server %s: %w", srv.Name(), err)
		}
		m.started = append(m.started, srv)
		logger.Infow("server started", "name", srv.Name())
	}
	return nil
}

// Stop stops all started servers gracefully.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(ctx)
}

func (m *Manager) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		srv := m.started[i]
		if err := srv.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server %s: %w", srv.Name(), err))
			continue
		}
		logger.Infow("server stopped", "name", srv.Name())
	}
	m.started = nil
	return utilerrors.NewAggregate(errs)
}

// Run starts all servers and blocks until ctx is cancelled, SIGINT or SIGTERM
// arrives, or a server reports a fatal error. Servers are then stopped within
// the shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Server shutting down...")
	case runErr = <-m.failures():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()
	if err := m.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// failures fans in the error channels of servers that expose one.
func (m *Manager) failures() <-chan error {
	out := make(chan error, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, srv := range m.started {
		if src, ok := srv.(interface{ Errors() <-chan error }); ok {
			go func(name string, ch <-chan error) {
				if err, ok := <-ch; ok {
					select {
					case out <- fmt.Errorf("server %s: %w", name, err):
					default:
					}
				}
			}(srv.Name(), src.Errors())
		}
	}
	return out
}
