// Package middleware provides HTTP middleware configuration options.
package middleware

import (
	"fmt"
	"slices"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Config is implemented by the options of each middleware.
type Config interface {
	options.IOptions
	Complete() error
}

// 中间件名称常量。
const (
	MiddlewareRecovery  = "recovery"
	MiddlewareRequestID = "request-id"
	MiddlewareLogger    = "logger"
	MiddlewareCORS      = "cors"
	MiddlewareRateLimit = "rate-limit"
	MiddlewareBodyLimit = "body-limit"
)

// Options 聚合 HTTP 服务使用的中间件配置。
type Options struct {
	// Middleware 指定启用的中间件及应用顺序。
	Middleware []string `json:"enabled" mapstructure:"enabled"`

	Recovery  *RecoveryOptions  `json:"recovery" mapstructure:"recovery"`
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
	CORS      *CORSOptions      `json:"cors" mapstructure:"cors"`
	RateLimit *RateLimitOptions `json:"rate-limit" mapstructure:"rate-limit"`
	BodyLimit *BodyLimitOptions `json:"body-limit" mapstructure:"body-limit"`
}

// NewOptions 创建默认中间件选项，全部中间件按默认顺序启用。
func NewOptions() *Options {
	return &Options{
		Middleware: DefaultOrder(),
		Recovery:   NewRecoveryOptions(),
		RequestID:  NewRequestIDOptions(),
		Logger:     NewLoggerOptions(),
		CORS:       NewCORSOptions(),
		RateLimit:  NewRateLimitOptions(),
		BodyLimit:  NewBodyLimitOptions(),
	}
}

// DefaultOrder returns the default middleware chain, outermost first.
func DefaultOrder() []string {
	return []string{
		MiddlewareRecovery,
		MiddlewareRequestID,
		MiddlewareLogger,
		MiddlewareCORS,
		MiddlewareRateLimit,
		MiddlewareBodyLimit,
	}
}

// IsEnabled 判断中间件是否启用。
func (o *Options) IsEnabled(name string) bool {
	return slices.Contains(o.Middleware, name)
}

// configs 返回已设置的子配置，nil 的跳过。
func (o *Options) configs() []Config {
	var out []Config
	add := func(c Config, isNil bool) {
		if !isNil {
			out = append(out, c)
		}
	}
	add(o.Recovery, o.Recovery == nil)
	add(o.RequestID, o.RequestID == nil)
	add(o.Logger, o.Logger == nil)
	add(o.CORS, o.CORS == nil)
	add(o.RateLimit, o.RateLimit == nil)
	add(o.BodyLimit, o.BodyLimit == nil)
	return out
}

// AddFlags adds flags for all middleware options.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.Middleware, options.Join(prefixes...)+"middleware.enabled", o.Middleware, "Enabled middleware in application order.")
	for _, c := range o.configs() {
		c.AddFlags(fs, prefixes...)
	}
}

// Validate validates all middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	for _, name := range o.Middleware {
		if !slices.Contains(DefaultOrder(), name) {
			errs = append(errs, fmt.Errorf("http.middleware.enabled: unknown middleware %q", name))
		}
	}
	for _, c := range o.configs() {
		errs = append(errs, c.Validate()...)
	}
	return errs
}

// Complete fills nil sub-options with defaults.
func (o *Options) Complete() error {
	def := NewOptions()
	fill(&o.Recovery, def.Recovery)
	fill(&o.RequestID, def.RequestID)
	fill(&o.Logger, def.Logger)
	fill(&o.CORS, def.CORS)
	fill(&o.RateLimit, def.RateLimit)
	fill(&o.BodyLimit, def.BodyLimit)
	if len(o.Middleware) == 0 {
		o.Middleware = def.Middleware
	}
	for _, c := range o.configs() {
		if err := c.Complete(); err != nil {
			return err
		}
	}
	return nil
}

func fill[T any](dst **T, def *T) {
	if *dst == nil {
		*dst = def
	}
}
