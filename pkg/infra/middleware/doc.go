// Package middleware provides the gin middleware chain used by the pdfrag
// HTTP server: recovery, request id, access logging, CORS, per-client rate
// limiting, request body limits, request metrics and tracing.
package middleware
