// Package redis provides the Redis client used by the embedding cache.
package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/pdfrag/pkg/component/storage"
	options "github.com/kart-io/pdfrag/pkg/options/redis"
)

// Client 包装 go-redis 客户端，注册到 storage.Manager 后参与健康检查与统一关闭。
type Client struct {
	*goredis.Client
	addr string
}

var _ storage.Client = (*Client)(nil)

// Dial 校验选项、建立连接池，并在 ctx 的期限内 ping 一次。
// ping 失败时连接池会被关闭。
func Dial(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, errors.New("redis options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid redis options: %w", utilerrors.NewAggregate(errs))
	}

	c := &Client{Client: goredis.NewClient(clientOptions(opts)), addr: opts.Addr()}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", c.addr, err)
	}
	return c, nil
}

func clientOptions(o *options.Options) *goredis.Options {
	return &goredis.Options{
		Addr:         o.Addr(),
		Password:     o.Password,
		DB:           o.Database,
		MaxRetries:   o.MaxRetries,
		PoolSize:     o.PoolSize,
		MinIdleConns: o.MinIdleConns,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolTimeout:  o.PoolTimeout,
	}
}

// Name 实现 storage.Client。
func (c *Client) Name() string { return "redis" }

// Ping 实现 storage.Client，覆盖 go-redis 的同名方法以返回 error。
func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// Addr returns host:port of the server.
func (c *Client) Addr() string { return c.addr }
