// Package storage provides a unified interface for external backends used by pdfrag.
//
// Every backend client (Redis, PostgreSQL, Milvus, Qdrant, the embedded bbolt
// file) implements Client so that the Manager can run health checks and
// release connections on shutdown in one place.
package storage
