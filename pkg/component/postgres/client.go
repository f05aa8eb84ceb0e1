// Package postgres 提供 pgvector 索引使用的 gorm PostgreSQL 连接。
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/pdfrag/pkg/component/storage"
	options "github.com/kart-io/pdfrag/pkg/options/postgres"
)

const pingTimeout = 5 * time.Second

// Client 持有 gorm 连接，实现 storage.Client。
type Client struct {
	db   *gorm.DB
	opts *options.Options
}

var _ storage.Client = (*Client)(nil)

// Dial 打开连接、设置连接池并在 ctx 内 ping 一次。
func Dial(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, errors.New("postgres options cannot be nil")
	}
	if errs := opts.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid postgres options: %w", utilerrors.NewAggregate(errs))
	}

	db, err := gorm.Open(postgresdriver.Open(BuildDSN(opts)), &gorm.Config{
		Logger:  newGormLogger(opts.LogLevel),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres %s:%d: %w", opts.Host, opts.Port, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)

	c := &Client{db: db, opts: opts}
	if err := c.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return c, nil
}

// gormWriter 把 gorm 的日志转发到全局 logger。
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logger.Infow(fmt.Sprintf(format, args...), "component", "postgres")
}

// newGormLogger 的 level 取值与 gormlogger.LogLevel 一致：1 silent 到 4 info。
func newGormLogger(level int) gormlogger.Interface {
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.LogLevel(level),
		IgnoreRecordNotFoundError: true,
	})
}

// DB 返回 gorm 连接。
func (c *Client) DB() *gorm.DB { return c.db }

// Options 返回创建连接时的配置。
func (c *Client) Options() *options.Options { return c.opts }

// Name 实现 storage.Client。
func (c *Client) Name() string { return "postgres" }

// Ping 检查数据库是否可达，最长等待 5 秒。
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// Close 关闭底层连接池。
func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
