package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	mwopts "github.com/kart-io/pdfrag/pkg/options/middleware"
	"github.com/kart-io/pdfrag/pkg/utils/response"
)

// HeaderXRequestID is the default request id header.
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// GetRequestID returns the request ID from the context.
// Returns empty string if not found.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// NewULID 生成按时间排序的 ULID。
func NewULID() string {
	return ulid.Make().String()
}

// NewUUID 生成随机 UUID v4。
func NewUUID() string {
	return uuid.NewString()
}

// RequestIDWithOptions returns a middleware that propagates or assigns a request id.
// 请求头中已有 ID 时沿用，否则按配置的生成器生成；ID 写入响应头、gin 上下文与 request context。
func RequestIDWithOptions(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = HeaderXRequestID
	}
	generate := NewULID
	if opts.GeneratorType == mwopts.GeneratorUUID {
		generate = NewUUID
	}

	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" || len(id) > 128 {
			id = generate()
		}
		c.Header(header, id)
		c.Set(response.RequestIDKey, id)
		c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
