package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/pdfrag/pkg/options/middleware"
	"github.com/kart-io/pdfrag/pkg/utils/response"
)

// LoggerWithOptions returns a middleware that writes one structured access log per request.
func LoggerWithOptions(opts mwopts.LoggerOptions) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		latency := time.Since(start)

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"client_ip", c.ClientIP(),
			"latency", latency.String(),
			"latency_ms", latency.Milliseconds(),
			"bytes", c.Writer.Size(),
		}
		if id := c.GetString(response.RequestIDKey); id != "" {
			fields = append(fields, "request_id", id)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Errorw("HTTP Request", fields...)
		case status >= 400:
			logger.Warnw("HTTP Request", fields...)
		default:
			logger.Infow("HTTP Request", fields...)
		}
	}
}
