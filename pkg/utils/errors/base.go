package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 通用错误码 (服务代码 00)
var (
	// OK 成功
	OK = Register(New(0, http.StatusOK, codes.OK, "Success", "成功"))

	ErrBadRequest      = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))
	ErrInvalidParam    = Register(New(MakeCode(ServiceCommon, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))
	ErrRequestTooLarge = Register(New(MakeCode(ServiceCommon, CategoryRequest, 3), http.StatusRequestEntityTooLarge, codes.ResourceExhausted, "Request body too large", "请求体过大"))

	ErrNotFound = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))

	ErrTooManyRequests = Register(New(MakeCode(ServiceCommon, CategoryRateLimit, 1), http.StatusTooManyRequests, codes.ResourceExhausted, "Too many requests", "请求过于频繁"))

	ErrInternal = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrPanic    = Register(New(MakeCode(ServiceCommon, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Internal server panic", "服务器内部异常"))

	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 1), http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))

	ErrTimeout = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 1), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))

	ErrConfig = Register(New(MakeCode(ServiceCommon, CategoryConfig, 1), http.StatusInternalServerError, codes.Internal, "Configuration error", "配置错误"))
)
