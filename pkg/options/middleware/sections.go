package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
)

var (
	_ Config = (*RecoveryOptions)(nil)
	_ Config = (*RequestIDOptions)(nil)
	_ Config = (*LoggerOptions)(nil)
	_ Config = (*CORSOptions)(nil)
	_ Config = (*RateLimitOptions)(nil)
	_ Config = (*BodyLimitOptions)(nil)
)

// probePaths 默认不记录访问日志、不限流的探针路径。
var probePaths = []string{"/health", "/metrics"}

func section(prefixes []string, name string) string {
	return options.Join(prefixes...) + "middleware." + name + "."
}

// RecoveryOptions panic 恢复。
type RecoveryOptions struct {
	EnableStackTrace bool `json:"enable-stack-trace" mapstructure:"enable-stack-trace"`
}

func NewRecoveryOptions() *RecoveryOptions { return &RecoveryOptions{} }

func (o *RecoveryOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.EnableStackTrace, section(prefixes, MiddlewareRecovery)+"enable-stack-trace", o.EnableStackTrace,
		"Log the stack trace of recovered panics.")
}

func (o *RecoveryOptions) Validate() []error { return nil }
func (o *RecoveryOptions) Complete() error   { return nil }

// Request ID 生成器。
const (
	GeneratorULID = "ulid" // 26 字符，按时间排序
	GeneratorUUID = "uuid"
)

// RequestIDOptions 请求头中已有 ID 时沿用，否则按 GeneratorType 生成。
type RequestIDOptions struct {
	Header        string `json:"header" mapstructure:"header"`
	GeneratorType string `json:"generator" mapstructure:"generator"`
}

func NewRequestIDOptions() *RequestIDOptions {
	return &RequestIDOptions{Header: "X-Request-ID", GeneratorType: GeneratorULID}
}

func (o *RequestIDOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := section(prefixes, MiddlewareRequestID)
	fs.StringVar(&o.Header, p+"header", o.Header, "Header carrying the request id.")
	fs.StringVar(&o.GeneratorType, p+"generator", o.GeneratorType, "ID generator: ulid or uuid.")
}

func (o *RequestIDOptions) Validate() []error {
	var errs []error
	if o.Header == "" {
		errs = append(errs, errors.New("middleware.request-id.header is required"))
	}
	if g := o.GeneratorType; g != "" && g != GeneratorULID && g != GeneratorUUID {
		errs = append(errs, fmt.Errorf("middleware.request-id.generator %q must be %q or %q", g, GeneratorULID, GeneratorUUID))
	}
	return errs
}

func (o *RequestIDOptions) Complete() error {
	if o.GeneratorType == "" {
		o.GeneratorType = GeneratorULID
	}
	return nil
}

// LoggerOptions 访问日志。
type LoggerOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

func NewLoggerOptions() *LoggerOptions {
	return &LoggerOptions{SkipPaths: append([]string(nil), probePaths...)}
}

func (o *LoggerOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.SkipPaths, section(prefixes, MiddlewareLogger)+"skip-paths", o.SkipPaths,
		"Paths excluded from access logs.")
}

func (o *LoggerOptions) Validate() []error { return nil }
func (o *LoggerOptions) Complete() error   { return nil }

// CORSOptions 跨域访问，默认允许任意来源。
type CORSOptions struct {
	AllowOrigins     []string `json:"allow-origins" mapstructure:"allow-origins"`
	AllowMethods     []string `json:"allow-methods" mapstructure:"allow-methods"`
	AllowHeaders     []string `json:"allow-headers" mapstructure:"allow-headers"`
	ExposeHeaders    []string `json:"expose-headers" mapstructure:"expose-headers"`
	AllowCredentials bool     `json:"allow-credentials" mapstructure:"allow-credentials"`
	MaxAge           int      `json:"max-age" mapstructure:"max-age"`
}

func NewCORSOptions() *CORSOptions {
	return &CORSOptions{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Accept-Language", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        86400,
	}
}

func (o *CORSOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := section(prefixes, MiddlewareCORS)
	fs.StringSliceVar(&o.AllowOrigins, p+"allow-origins", o.AllowOrigins, "Allowed origins; \"*\" allows any.")
	fs.StringSliceVar(&o.AllowMethods, p+"allow-methods", o.AllowMethods, "Allowed methods.")
	fs.StringSliceVar(&o.AllowHeaders, p+"allow-headers", o.AllowHeaders, "Allowed request headers.")
	fs.StringSliceVar(&o.ExposeHeaders, p+"expose-headers", o.ExposeHeaders, "Response headers exposed to the browser.")
	fs.BoolVar(&o.AllowCredentials, p+"allow-credentials", o.AllowCredentials, "Allow cookies and credentials.")
	fs.IntVar(&o.MaxAge, p+"max-age", o.MaxAge, "Preflight cache duration in seconds.")
}

func (o *CORSOptions) Validate() []error {
	var errs []error
	if len(o.AllowOrigins) == 0 {
		errs = append(errs, errors.New("middleware.cors.allow-origins must not be empty"))
	}
	if o.MaxAge < 0 {
		errs = append(errs, errors.New("middleware.cors.max-age must not be negative"))
	}
	return errs
}

func (o *CORSOptions) Complete() error {
	if len(o.AllowMethods) == 0 {
		o.AllowMethods = NewCORSOptions().AllowMethods
	}
	return nil
}

// RateLimitOptions 按客户端 IP 的令牌桶。
type RateLimitOptions struct {
	// RPS 每秒补充的令牌数。
	RPS float64 `json:"rps" mapstructure:"rps"`
	// Burst 桶容量。
	Burst     int      `json:"burst" mapstructure:"burst"`
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

func NewRateLimitOptions() *RateLimitOptions {
	return &RateLimitOptions{RPS: 20, Burst: 40, SkipPaths: append([]string(nil), probePaths...)}
}

func (o *RateLimitOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := section(prefixes, MiddlewareRateLimit)
	fs.Float64Var(&o.RPS, p+"rps", o.RPS, "Requests per second allowed for each client IP.")
	fs.IntVar(&o.Burst, p+"burst", o.Burst, "Token bucket size for each client IP.")
	fs.StringSliceVar(&o.SkipPaths, p+"skip-paths", o.SkipPaths, "Paths exempt from rate limiting.")
}

func (o *RateLimitOptions) Validate() []error {
	var errs []error
	if o.RPS <= 0 {
		errs = append(errs, errors.New("middleware.rate-limit.rps must be positive"))
	}
	if o.Burst < 1 {
		errs = append(errs, errors.New("middleware.rate-limit.burst must be at least 1"))
	}
	return errs
}

func (o *RateLimitOptions) Complete() error { return nil }

// DefaultMaxBodySize 比单个 PDF 上限 (50MiB) 多 1MiB，留给 multipart 开销。
const DefaultMaxBodySize = 51 << 20

// BodyLimitOptions 请求体大小上限。
type BodyLimitOptions struct {
	MaxSize   int64    `json:"max-size" mapstructure:"max-size"`
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

func NewBodyLimitOptions() *BodyLimitOptions { return &BodyLimitOptions{MaxSize: DefaultMaxBodySize} }

func (o *BodyLimitOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := section(prefixes, MiddlewareBodyLimit)
	fs.Int64Var(&o.MaxSize, p+"max-size", o.MaxSize, "Maximum request body size in bytes.")
	fs.StringSliceVar(&o.SkipPaths, p+"skip-paths", o.SkipPaths, "Paths exempt from the body size limit.")
}

func (o *BodyLimitOptions) Validate() []error {
	if o.MaxSize > 0 {
		return nil
	}
	return []error{errors.New("middleware.body-limit.max-size must be positive")}
}

func (o *BodyLimitOptions) Complete() error {
	if o.MaxSize == 0 {
		o.MaxSize = DefaultMaxBodySize
	}
	return nil
}
