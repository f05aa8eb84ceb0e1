package middleware

import (
	"github.com/gin-gonic/gin"

	mwopts "github.com/kart-io/pdfrag/pkg/options/middleware"
)

// Chain builds the configured middleware in the order listed by opts.Middleware.
// Metrics and tracing always wrap the configured chain so that rejected and
// recovered requests are observed too. rec may be nil.
func Chain(opts *mwopts.Options, rec RequestRecorder) []gin.HandlerFunc {
	if opts == nil {
		opts = mwopts.NewOptions()
	}
	_ = opts.Complete()

	chain := make([]gin.HandlerFunc, 0, len(opts.Middleware)+2)
	if rec != nil {
		chain = append(chain, Metrics(rec))
	}
	chain = append(chain, Tracing())
	for _, name := range opts.Middleware {
		switch name {
		case mwopts.MiddlewareRecovery:
			chain = append(chain, RecoveryWithOptions(*opts.Recovery))
		case mwopts.MiddlewareRequestID:
			chain = append(chain, RequestIDWithOptions(*opts.RequestID))
		case mwopts.MiddlewareLogger:
			chain = append(chain, LoggerWithOptions(*opts.Logger))
		case mwopts.MiddlewareCORS:
			chain = append(chain, CORSWithOptions(*opts.CORS))
		case mwopts.MiddlewareRateLimit:
			chain = append(chain, RateLimitWithOptions(*opts.RateLimit))
		case mwopts.MiddlewareBodyLimit:
			chain = append(chain, BodyLimitWithOptions(*opts.BodyLimit))
		}
	}
	return chain
}
