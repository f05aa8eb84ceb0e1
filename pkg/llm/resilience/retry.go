// Package resilience 提供外部依赖调用的韧性模式：重试与熔断器。
//
// Retry 只对 Retryable 判定为可重试的错误做指数退避；Breaker 在连续失败后
// 短路请求，冷却期结束再放行少量探测调用。
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"
)

// RetryConfig 重试配置。
type RetryConfig struct {
	// MaxAttempts 最大尝试次数（包括首次调用），小于 1 按 1 处理。
	MaxAttempts int
	// InitialDelay 第一次重试前的等待时间。
	InitialDelay time.Duration
	// MaxDelay 单次等待上限，0 表示不设上限。
	MaxDelay time.Duration
	// Multiplier 每次重试后等待时间的倍数。
	Multiplier float64
	// Retryable 为空时使用 IsRetryableError。
	Retryable func(error) bool
	// OnRetry 每次重试前回调。
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig 返回默认重试配置。
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Retryable:    IsRetryableError,
	}
}

// backoff 生成逐次增长的等待时间。
type backoff struct {
	next       time.Duration
	max        time.Duration
	multiplier float64
}

func (b *backoff) wait(ctx context.Context) error {
	timer := time.NewTimer(b.next)
	defer timer.Stop()

	d := time.Duration(float64(b.next) * b.multiplier)
	if b.max > 0 && d > b.max {
		d = b.max
	}
	b.next = d

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry 按 cfg 重试 fn。
// 不可重试的错误原样返回；重试耗尽后返回最后一次的原始错误，
// 因此调用方仍能用 errors.As 取到错误码。
func Retry(ctx context.Context, cfg *RetryConfig, fn func(ctx context.Context) error) error {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}
	attempts := max(cfg.MaxAttempts, 1)
	bo := &backoff{next: cfg.InitialDelay, max: cfg.MaxDelay, multiplier: cfg.Multiplier}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		switch {
		case err == nil:
			return nil
		case !retryable(err):
			return err
		case attempt >= attempts:
			logger.Warnw("giving up after retries", "attempts", attempt, "error", err.Error())
			return err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		logger.Debugw("retrying", "attempt", attempt, "delay", bo.next, "error", err.Error())
		if werr := bo.wait(ctx); werr != nil {
			return werr
		}
	}
}

// RetryWithBreaker 在熔断器保护下重试 fn。熔断器打开后立即失败。
func RetryWithBreaker(ctx context.Context, cfg *RetryConfig, b *Breaker, fn func(ctx context.Context) error) error {
	c := *DefaultRetryConfig()
	if cfg != nil {
		c = *cfg
	}
	inner := c.Retryable
	if inner == nil {
		inner = IsRetryableError
	}
	c.Retryable = func(err error) bool {
		return !errors.Is(err, ErrCircuitBreakerOpen) && inner(err)
	}
	return Retry(ctx, &c, func(ctx context.Context) error {
		return b.Execute(func() error { return fn(ctx) })
	})
}
