// Package errors provides the structured error codes used across pdfrag.
//
// Error Code Format: AABBCCC (7 digits)
//
//	AA  (00-99): Service code, 00 for shared errors, 20 for the RAG pipeline
//	BB  (00-99): Category code (request, resource, storage, network, ...)
//	CCC (000-999): Sequence number within the category
//
// Every pipeline failure kind maps to one registered Errno, so the HTTP
// layer can translate an error into a status code with FromError alone.
//
// Usage:
//
//	// Wrapping underlying errors
//	return errors.ErrRAGVectorStore.WithCause(err)
//
//	// Overriding the message
//	return errors.ErrRAGBadRequest.WithMessage("query must not be empty")
package errors

import (
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
)

// Errno is a registered error: a stable numeric code, the HTTP and gRPC
// statuses it maps to, bilingual messages and an optional cause.
type Errno struct {
	Code      int        `json:"code"`
	HTTP      int        `json:"-"`
	GRPCCode  codes.Code `json:"-"`
	MessageEN string     `json:"message"`
	MessageZH string     `json:"message_zh,omitempty"`

	cause error
}

// New creates an Errno. Most callers wrap it in Register.
func New(code int, httpStatus int, grpcCode codes.Code, messageEN, messageZH string) *Errno {
	return &Errno{
		Code:      code,
		HTTP:      httpStatus,
		GRPCCode:  grpcCode,
		MessageEN: messageEN,
		MessageZH: messageZH,
	}
}

func (e *Errno) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
	}
	return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// Is reports whether target carries the same code, so errors.Is matches a
// derived Errno against its registered value.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && e.Code == t.Code
}

// clone 复制错误码，注册值本身保持不可变。
func (e *Errno) clone() *Errno {
	c := *e
	return &c
}

// WithCause returns a copy of e wrapping cause.
func (e *Errno) WithCause(cause error) *Errno {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage returns a copy of e with an overridden English message.
func (e *Errno) WithMessage(msg string) *Errno {
	c := e.clone()
	c.MessageEN = msg
	return c
}

// WithMessagef is WithMessage with formatting.
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message returns the Chinese message for zh* languages when one exists,
// the English message otherwise.
func (e *Errno) Message(lang string) string {
	if e.MessageZH != "" && strings.HasPrefix(strings.ToLower(lang), "zh") {
		return e.MessageZH
	}
	return e.MessageEN
}

// HTTPStatus returns the HTTP status, 500 when unset.
func (e *Errno) HTTPStatus() int {
	if e.HTTP == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTP
}

// GRPCStatus returns the gRPC status code, Internal when unset.
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode == codes.OK {
		return codes.Internal
	}
	return e.GRPCCode
}
