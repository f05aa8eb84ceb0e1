package errors

import (
	"context"
	stderrors "errors"
)

// as 返回错误链中的第一个 *Errno。
func as(err error) (*Errno, bool) {
	var e *Errno
	ok := stderrors.As(err, &e)
	return e, ok
}

// FromError 把任意错误转换为 *Errno：错误链中已有 Errno 时原样返回，
// context 超时对应 ErrTimeout，其余归为 ErrInternal。
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	if e, ok := as(err); ok {
		return e
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout.WithCause(err)
	}
	return ErrInternal.WithCause(err)
}

// IsCode 判断错误链中是否带有 code。
func IsCode(err error, code int) bool {
	e, ok := as(err)
	return ok && e.Code == code
}

// GetCode 返回错误码，不是 Errno 时返回 -1。
func GetCode(err error) int {
	if e, ok := as(err); ok {
		return e.Code
	}
	return -1
}
