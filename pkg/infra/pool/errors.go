// Package pool wraps ants worker pools: a blocking pool for document
// ingestion and a process-wide non-blocking pool for health checks.
package pool

import "errors"

var (
	// ErrPoolClosed is returned when submitting to a released pool.
	ErrPoolClosed = errors.New("pool: closed")

	// ErrPoolOverload is returned by a non-blocking pool with no free worker.
	ErrPoolOverload = errors.New("pool: overloaded")

	// ErrPoolNotFound is returned when no shared pool has the requested type.
	ErrPoolNotFound = errors.New("pool: not found")

	// ErrInvalidPoolConfig is returned for a non-positive capacity.
	ErrInvalidPoolConfig = errors.New("pool: invalid config")

	// ErrManagerNotInitialized is returned by GetByType before InitGlobal.
	ErrManagerNotInitialized = errors.New("pool: shared pools not initialized")
)
