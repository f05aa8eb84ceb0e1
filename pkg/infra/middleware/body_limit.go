package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/pdfrag/pkg/options/middleware"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
	"github.com/kart-io/pdfrag/pkg/utils/response"
)

// BodyLimitWithOptions 返回请求体大小限制中间件。
// Content-Length 超限时直接拒绝，否则用 http.MaxBytesReader 限制实际读取量。
func BodyLimitWithOptions(opts mwopts.BodyLimitOptions) gin.HandlerFunc {
	if opts.MaxSize <= 0 {
		opts.MaxSize = mwopts.NewBodyLimitOptions().MaxSize
	}
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		req := c.Request
		if _, ok := skip[req.URL.Path]; ok {
			c.Next()
			return
		}
		if req.ContentLength > opts.MaxSize {
			logger.Warnw("request body too large",
				"path", req.URL.Path,
				"content_length", req.ContentLength,
				"max_size", opts.MaxSize,
			)
			response.Fail(c, errors.ErrRequestTooLarge)
			return
		}
		req.Body = http.MaxBytesReader(c.Writer, req.Body, opts.MaxSize)
		c.Next()
	}
}
