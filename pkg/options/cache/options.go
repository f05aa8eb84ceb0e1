// Package cache 定义 Embedding 缓存配置：进程内 LRU 加可选的 Redis 二级缓存。
package cache

import (
	"errors"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/pdfrag/pkg/options"
	redisopts "github.com/kart-io/pdfrag/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options Embedding 缓存配置。
type Options struct {
	// MaxEntries 进程内缓存上限，0 表示不限。
	MaxEntries int `json:"max-entries" mapstructure:"max-entries"`
	// RedisEnabled 为 false 时下列字段都不生效。
	RedisEnabled bool               `json:"redis-enabled" mapstructure:"redis-enabled"`
	TTL          time.Duration      `json:"ttl" mapstructure:"ttl"`
	KeyPrefix    string             `json:"key-prefix" mapstructure:"key-prefix"`
	Redis        *redisopts.Options `json:"redis" mapstructure:"redis"`
}

func NewOptions() *Options {
	return &Options{
		TTL:       24 * time.Hour,
		KeyPrefix: "pdfrag:emb:",
		Redis:     redisopts.NewOptions(),
	}
}

// AddFlags 注册 cache.* 以及 cache.redis.* 参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	_ = o.Complete()
	p := options.Join(prefixes...) + "cache."
	fs.IntVar(&o.MaxEntries, p+"max-entries", o.MaxEntries, "In-process embedding cache size (0 = unbounded).")
	fs.BoolVar(&o.RedisEnabled, p+"redis-enabled", o.RedisEnabled, "Share embeddings through Redis.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Expiry of embeddings stored in Redis.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Prefix of Redis embedding keys.")
	o.Redis.AddFlags(fs, append(prefixes, "cache")...)
}

func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.MaxEntries < 0 {
		errs = append(errs, errors.New("cache.max-entries must not be negative"))
	}
	if !o.RedisEnabled {
		return errs
	}
	if o.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	return append(errs, o.Redis.Validate()...)
}

func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return nil
}
