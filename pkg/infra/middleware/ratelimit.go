package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	mwopts "github.com/kart-io/pdfrag/pkg/options/middleware"
	"github.com/kart-io/pdfrag/pkg/utils/errors"
	"github.com/kart-io/pdfrag/pkg/utils/response"
)

// maxTrackedClients bounds the number of per-client buckets kept in memory.
const maxTrackedClients = 10000

// RateLimiter hands out one token bucket per key.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	mu      sync.Mutex
	buckets *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter creates a RateLimiter refilling rps tokens per second up to burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	buckets, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &RateLimiter{rps: rate.Limit(rps), burst: burst, buckets: buckets}
}

// Reserve takes a token for key. It reports whether the request may proceed
// and, when it may not, how long until the next token is available.
func (l *RateLimiter) Reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.buckets.Add(key, lim)
	}
	l.mu.Unlock()

	now := time.Now()
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// RateLimitWithOptions returns a per-client-IP token bucket middleware.
func RateLimitWithOptions(opts mwopts.RateLimitOptions) gin.HandlerFunc {
	limiter := NewRateLimiter(opts.RPS, opts.Burst)
	skip := make(map[string]struct{}, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}
		ok, wait := limiter.Reserve(c.ClientIP())
		if !ok {
			secs := int(wait / time.Second)
			if wait%time.Second != 0 {
				secs++
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			response.Fail(c, errors.ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
