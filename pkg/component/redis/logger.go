package redis

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"
)

// redisLogger forwards go-redis internal messages (reconnects, pool
// warnings) to the global logger, tagged with the component name.
type redisLogger struct{}

func (redisLogger) Printf(ctx context.Context, format string, v ...interface{}) {
	logger.Global().WithCtx(ctx).Warnw(fmt.Sprintf(format, v...), "component", "redis")
}

func init() {
	goredis.SetLogger(redisLogger{})
}
