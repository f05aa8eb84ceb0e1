package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/pdfrag/pkg/options/middleware"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
	"github.com/kart-io/pdfrag/pkg/utils/response"
)

// RecoveryWithOptions returns a middleware that converts panics into an ErrPanic response.
func RecoveryWithOptions(opts mwopts.RecoveryOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			fields := []any{
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", c.GetString(response.RequestIDKey),
				"panic", fmt.Sprint(r),
			}
			if opts.EnableStackTrace {
				fields = append(fields, "stack", string(debug.Stack()))
			}
			logger.Errorw("panic recovered", fields...)
			response.Fail(c, errors.ErrPanic)
		}()
		c.Next()
	}
}
