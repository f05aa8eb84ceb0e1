// Package redis 定义 Redis 连接配置，目前由 Embedding 二级缓存使用。
package redis

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
	"github.com/kart-io/pdfrag/pkg/utils/json"
)

var _ options.IOptions = (*Options)(nil)

const redacted = "[REDACTED]"

// Options Redis 连接配置。
type Options struct {
	Host         string        `json:"host" mapstructure:"host"`
	Port         int           `json:"port" mapstructure:"port"`
	Password     string        `json:"password" mapstructure:"password"`
	Database     int           `json:"database" mapstructure:"database"`
	MaxRetries   int           `json:"max-retries" mapstructure:"max-retries"`
	PoolSize     int           `json:"pool-size" mapstructure:"pool-size"`
	MinIdleConns int           `json:"min-idle-conns" mapstructure:"min-idle-conns"`
	DialTimeout  time.Duration `json:"dial-timeout" mapstructure:"dial-timeout"`
	ReadTimeout  time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	PoolTimeout  time.Duration `json:"pool-timeout" mapstructure:"pool-timeout"`
}

// NewOptions 返回本机默认配置。
func NewOptions() *Options {
	return &Options{
		Host:         "127.0.0.1",
		Port:         6379,
		MaxRetries:   3,
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	}
}

// MarshalJSON 序列化时隐藏密码。
func (o Options) MarshalJSON() ([]byte, error) {
	type plain Options
	out := plain(o)
	if out.Password != "" {
		out.Password = redacted
	}
	return json.Marshal(out)
}

func (o *Options) String() string {
	pw := ""
	if o.Password != "" {
		pw = redacted
	}
	return fmt.Sprintf("Redis{addr=%s, password=%s, database=%d}", o.Addr(), pw, o.Database)
}

// Addr 返回 host:port。
func (o *Options) Addr() string {
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Validate 校验连接参数。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Host == "" {
		errs = append(errs, errors.New("redis.host must not be empty"))
	}
	if o.Port < 1 || o.Port > 65535 {
		errs = append(errs, fmt.Errorf("redis.port %d out of range", o.Port))
	}
	if o.Database < 0 {
		errs = append(errs, errors.New("redis.database must not be negative"))
	}
	if o.PoolSize < 1 {
		errs = append(errs, errors.New("redis.pool-size must be positive"))
	}
	return errs
}

// AddFlags 注册 redis.* 参数。密码优先通过环境变量传入。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "redis."
	fs.StringVar(&o.Host, p+"host", o.Host, "Redis host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Redis port.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Redis password.")
	fs.IntVar(&o.Database, p+"database", o.Database, "Redis logical database.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Retries per command before giving up.")
	fs.IntVar(&o.PoolSize, p+"pool-size", o.PoolSize, "Connection pool size.")
	fs.IntVar(&o.MinIdleConns, p+"min-idle-conns", o.MinIdleConns, "Idle connections kept open.")
	for name, d := range map[string]*time.Duration{
		"dial-timeout":  &o.DialTimeout,
		"read-timeout":  &o.ReadTimeout,
		"write-timeout": &o.WriteTimeout,
		"pool-timeout":  &o.PoolTimeout,
	} {
		fs.DurationVar(d, p+name, *d, "Redis "+name+".")
	}
}
