package middleware

import (
	"github.com/gin-gonic/gin"
)

// RequestRecorder receives one observation per finished request.
type RequestRecorder interface {
	RecordHTTPRequest(method, path string, status int)
}

// Metrics returns a middleware reporting every request to rec.
// 使用路由模板作为 path 标签，未匹配路由记为 "unmatched"，避免标签基数膨胀。
func Metrics(rec RequestRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		rec.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status())
	}
}
