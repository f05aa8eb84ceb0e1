package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitBreakerOpen 熔断器打开时返回，调用方不应再重试。
var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// State 熔断器状态。
type State int

const (
	StateClosed   State = iota // 正常放行
	StateOpen                  // 拒绝所有调用
	StateHalfOpen              // 放行有限的探测调用
)

var stateNames = [...]string{"closed", "open", "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// BreakerConfig 熔断器配置。
type BreakerConfig struct {
	// Name 出现在状态切换日志中，通常是被保护的供应商名称。
	Name string
	// Threshold 连续失败多少次后打开熔断器。
	Threshold int
	// Cooldown 打开后多久进入半开状态。
	Cooldown time.Duration
	// Probes 半开状态下允许的探测调用数，全部成功后关闭熔断器。
	Probes int
}

// DefaultBreakerConfig 返回默认熔断器配置。
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Threshold: 5,
		Cooldown:  time.Minute,
		Probes:    1,
	}
}

func (c BreakerConfig) normalized() BreakerConfig {
	if c.Threshold < 1 {
		c.Threshold = 1
	}
	if c.Probes < 1 {
		c.Probes = 1
	}
	return c
}

// BreakerStats 熔断器快照。
type BreakerStats struct {
	Name     string    `json:"name"`
	State    string    `json:"state"`
	Failures int       `json:"failures"`
	OpenedAt time.Time `json:"opened_at,omitempty"`
}

// Breaker 按连续失败次数熔断的熔断器，可并发使用。
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  int // 半开状态下已放行的探测数
	probeOK  int
}

// NewBreaker 创建熔断器，cfg 为空时使用默认配置。
func NewBreaker(cfg *BreakerConfig) *Breaker {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	return &Breaker{cfg: cfg.normalized(), now: time.Now}
}

// Execute 在熔断器保护下执行 fn。熔断器拒绝时 fn 不会被调用。
func (b *Breaker) Execute(fn func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := fn()
	b.release(err)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrCircuitBreakerOpen
		}
		b.transition(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.probing >= b.cfg.Probes {
			return ErrCircuitBreakerOpen
		}
		b.probing++
	}
	return nil
}

func (b *Breaker) release(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case err == nil && b.state == StateHalfOpen:
		b.probeOK++
		if b.probeOK >= b.cfg.Probes {
			b.transition(StateClosed)
		}
	case err == nil:
		b.failures = 0
	case b.state == StateHalfOpen:
		b.failures++
		b.transition(StateOpen)
	case b.state == StateClosed:
		b.failures++
		if b.failures >= b.cfg.Threshold {
			b.transition(StateOpen)
		}
	}
}

// transition 必须在持有锁时调用。
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.probing, b.probeOK = 0, 0
	switch to {
	case StateOpen:
		b.openedAt = b.now()
		logger.Warnw("circuit breaker opened",
			"breaker", b.cfg.Name,
			"from", from.String(),
			"failures", b.failures,
		)
	case StateClosed:
		b.failures = 0
		logger.Infow("circuit breaker closed", "breaker", b.cfg.Name)
	default:
		logger.Infow("circuit breaker probing", "breaker", b.cfg.Name)
	}
}

// State 返回当前状态。冷却期结束但尚无调用时仍报告 open。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats 返回当前状态快照。
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		Name:     b.cfg.Name,
		State:    b.state.String(),
		Failures: b.failures,
		OpenedAt: b.openedAt,
	}
}

// Reset 强制关闭熔断器并清空计数。
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.openedAt = time.Time{}
	b.probing, b.probeOK = 0, 0
}
