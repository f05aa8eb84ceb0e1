package pool

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type identifies what a pool is used for.
type Type string

const (
	HealthCheckPool Type = "health-check" // 健康检查，非阻塞
	IngestPool      Type = "ingest"       // 批量导入 PDF，阻塞提交
)

// Config 池配置。
type Config struct {
	Capacity       int           // 最大并发 goroutine 数
	ExpiryDuration time.Duration // 空闲 worker 回收时间
	PreAlloc       bool
	// Nonblocking 为 true 时池满立即返回 ErrPoolOverload，否则 Submit 阻塞等待。
	Nonblocking bool
	// PanicHandler 为空时记录日志。
	PanicHandler func(any)
}

// HealthCheckPoolConfig 健康检查池：容量小、预分配、池满时调用方自行降级。
func HealthCheckPoolConfig() *Config {
	return &Config{
		Capacity:       16,
		ExpiryDuration: 30 * time.Second,
		PreAlloc:       true,
		Nonblocking:    true,
	}
}

// IngestPoolConfig 导入池，workers 即同时处理的文件数，默认 4。
func IngestPoolConfig(workers int) *Config {
	if workers <= 0 {
		workers = 4
	}
	return &Config{
		Capacity:       workers,
		ExpiryDuration: time.Minute,
	}
}

// Stats 池统计快照。
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Rejected  int64 `json:"rejected"`
	Panics    int64 `json:"panics"`
}

// Pool 包装 ants.Pool，增加任务计数与统一的错误类型。
type Pool struct {
	name string
	typ  Type
	ants *ants.Pool

	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64

	releaseOnce sync.Once
}

// NewPool creates a pool. A nil cfg means a blocking pool sized by
// IngestPoolConfig defaults.
func NewPool(name string, typ Type, cfg *Config) (*Pool, error) {
	if cfg == nil {
		cfg = IngestPoolConfig(0)
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidPoolConfig)
	}

	p := &Pool{name: name, typ: typ}
	panicHandler := cfg.PanicHandler
	if panicHandler == nil {
		panicHandler = func(v any) {
			logger.Errorw("worker panic recovered", "pool", name, "panic", v)
		}
	}
	ap, err := ants.NewPool(cfg.Capacity,
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		ants.WithPreAlloc(cfg.PreAlloc),
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithPanicHandler(func(v any) {
			p.panics.Add(1)
			panicHandler(v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", name, err)
	}
	p.ants = ap

	logger.Debugw("worker pool created", "name", name, "type", string(typ), "capacity", cfg.Capacity)
	return p, nil
}

// Name 返回池名称。
func (p *Pool) Name() string { return p.name }

// Type 返回池类型。
func (p *Pool) Type() Type { return p.typ }

// Cap 返回池容量。
func (p *Pool) Cap() int { return p.ants.Cap() }

// Running 返回正在执行任务的 worker 数。
func (p *Pool) Running() int { return p.ants.Running() }

// Submit 提交任务。阻塞池在无空闲 worker 时等待；非阻塞池返回 ErrPoolOverload。
func (p *Pool) Submit(task func()) error {
	err := p.ants.Submit(func() {
		task()
		p.completed.Add(1)
	})
	switch {
	case err == nil:
		p.submitted.Add(1)
		return nil
	case errors.Is(err, ants.ErrPoolOverload):
		p.rejected.Add(1)
		return ErrPoolOverload
	case errors.Is(err, ants.ErrPoolClosed):
		return ErrPoolClosed
	default:
		return err
	}
}

// Stats 返回统计快照。
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Rejected:  p.rejected.Load(),
		Panics:    p.panics.Load(),
	}
}

// Release 关闭池，可重复调用。已在执行的任务不会被中断。
func (p *Pool) Release() {
	p.releaseOnce.Do(func() {
		p.ants.Release()
		logger.Debugw("worker pool released", "name", p.name)
	})
}
