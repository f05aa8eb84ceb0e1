// Package response writes the JSON envelope shared by every pdfrag endpoint:
//
//	{"code": 0, "message": "success", "data": {...}, "request_id": "...", "timestamp": 1700000000000}
//
// Errors carry the Errno code and message and use the Errno HTTP status.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/pdfrag/pkg/utils/errors"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// Response is the API envelope.
type Response struct {
	Code      int         `json:"code"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`

	status int
}

// HTTPStatus resolves the status code: the Errno status for registered codes,
// otherwise a guess from the code category.
func (r *Response) HTTPStatus() int {
	if r.status != 0 {
		return r.status
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// OK 写入成功响应
func OK(c *gin.Context, data interface{}) {
	write(c, &Response{Code: 0, Message: "success", Data: data, status: http.StatusOK})
}

// Fail 写入错误响应并中止后续处理器。服务端错误附带 cause 记录日志。
func Fail(c *gin.Context, e *errors.Errno) {
	if e == nil {
		e = errors.ErrInternal
	}
	if !errors.IsClientError(e.Code) {
		logger.Errorw("request failed",
			"request_id", c.GetString(RequestIDKey),
			"path", c.FullPath(),
			"code", e.Code,
			"error", e.Error(),
		)
	}
	write(c, &Response{
		Code:    e.Code,
		Message: e.Message(c.GetHeader("Accept-Language")),
		status:  e.HTTPStatus(),
	})
	c.Abort()
}

// FailWithError converts err through errors.FromError and writes it.
func FailWithError(c *gin.Context, err error) {
	Fail(c, errors.FromError(err))
}

func write(c *gin.Context, r *Response) {
	r.RequestID = c.GetString(RequestIDKey)
	r.Timestamp = time.Now().UnixMilli()
	c.JSON(r.HTTPStatus(), r)
}
