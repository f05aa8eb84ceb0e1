// Package http provides HTTP server configuration options.
package http

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
	"github.com/kart-io/pdfrag/pkg/options/middleware"
)

var _ options.IOptions = (*Options)(nil)

// Options 是 HTTP 服务的监听与超时配置。WriteTimeout 需要覆盖一次完整的
// 查询（检索加生成），默认值比常见 API 服务宽松。
type Options struct {
	Addr            string              `json:"addr" mapstructure:"addr"`
	ReadTimeout     time.Duration       `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout    time.Duration       `json:"write-timeout" mapstructure:"write-timeout"`
	IdleTimeout     time.Duration       `json:"idle-timeout" mapstructure:"idle-timeout"`
	ShutdownTimeout time.Duration       `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
	Mode            string              `json:"mode" mapstructure:"mode"` // gin 模式
	Middleware      *middleware.Options `json:"middleware" mapstructure:"middleware"`
}

// NewOptions listens on :8000 in gin release mode.
func NewOptions() *Options {
	return &Options{
		Addr:            ":8000",
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    120 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		Mode:            "release",
		Middleware:      middleware.NewOptions(),
	}
}

// AddFlags adds flags for HTTP options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "http."
	fs.StringVar(&o.Addr, p+"addr", o.Addr, "HTTP server listen address")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "HTTP server read timeout")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "HTTP server write timeout")
	fs.DurationVar(&o.IdleTimeout, p+"idle-timeout", o.IdleTimeout, "HTTP server idle timeout")
	fs.DurationVar(&o.ShutdownTimeout, p+"shutdown-timeout", o.ShutdownTimeout, "HTTP server graceful shutdown timeout")
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Gin mode (debug, release, test)")

	if o.Middleware == nil {
		o.Middleware = middleware.NewOptions()
	}
	o.Middleware.AddFlags(fs, append(prefixes, "http")...)
}

// Validate validates the HTTP options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr cannot be empty"))
	}
	for name, d := range map[string]time.Duration{
		"read-timeout":     o.ReadTimeout,
		"write-timeout":    o.WriteTimeout,
		"shutdown-timeout": o.ShutdownTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("http.%s must be positive", name))
		}
	}
	switch o.Mode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("http.mode must be debug, release or test"))
	}
	if o.Middleware != nil {
		errs = append(errs, o.Middleware.Validate()...)
	}
	return errs
}

// Complete completes the HTTP options with defaults.
func (o *Options) Complete() error {
	if o.Middleware == nil {
		o.Middleware = middleware.NewOptions()
	}
	return o.Middleware.Complete()
}
