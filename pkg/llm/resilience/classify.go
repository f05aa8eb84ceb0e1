package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/kart-io/logger"

	apierrors "github.com/kart-io/pdfrag/pkg/utils/errors"
	"github.com/kart-io/pdfrag/pkg/utils/httpclient"
)

// retryableStatus 4xx 中值得重试的状态码，5xx 全部可重试。
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:  true,
	http.StatusTooManyRequests: true,
}

// IsRetryableError 判断供应商调用失败后是否值得重试。
func IsRetryableError(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, ErrCircuitBreakerOpen),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		ok := se.StatusCode >= http.StatusInternalServerError || retryableStatus[se.StatusCode]
		if ok {
			logger.Debugw("retryable provider status", "status", se.StatusCode)
		}
		return ok
	}

	// 网络层：超时、DNS、连接失败、连接被提前关闭
	var (
		netErr net.Error
		dnsErr *net.DNSError
		opErr  *net.OpError
	)
	if (errors.As(err, &netErr) && netErr.Timeout()) ||
		errors.As(err, &dnsErr) ||
		errors.As(err, &opErr) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	return IsTransient(err)
}

// IsTransient 判断业务错误是否属于下游瞬时故障：模型不可用、向量库失败或嵌入失败。
func IsTransient(err error) bool {
	switch apierrors.GetCode(err) {
	case apierrors.ErrRAGModelUnavailable.Code,
		apierrors.ErrRAGVectorStore.Code,
		apierrors.ErrRAGEmbedding.Code:
		return true
	}
	return false
}
