package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/pdfrag/pkg/options/redis"
)

func TestDialRejectsBadOptions(t *testing.T) {
	_, err := Dial(context.Background(), nil)
	assert.Error(t, err)

	opts := options.NewOptions()
	opts.Port = 0
	_, err = Dial(context.Background(), opts)
	assert.ErrorContains(t, err, "invalid redis options")
}

func TestDialUnreachable(t *testing.T) {
	opts := options.NewOptions()
	opts.Host = "127.0.0.1"
	opts.Port = 1
	opts.MaxRetries = -1
	opts.DialTimeout = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Dial(ctx, opts)
	assert.ErrorContains(t, err, "failed to ping redis at 127.0.0.1:1")
}

func TestClientOptions(t *testing.T) {
	opts := options.NewOptions()
	opts.Host = "cache"
	opts.Password = "pw"
	opts.Database = 3

	got := clientOptions(opts)
	require.NotNil(t, got)
	assert.Equal(t, "cache:6379", got.Addr)
	assert.Equal(t, "pw", got.Password)
	assert.Equal(t, 3, got.DB)
	assert.Equal(t, opts.PoolSize, got.PoolSize)
}
