package redis

import (
	"context"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/redis/go-redis/v9"
)

var _ auth.AttemptLimiter = (*AttemptLimiter)(nil)

const fixedWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if current > tonumber(ARGV[2]) then
  return 0
end
return 1
`

// AttemptLimiter is a fixed-window counter keyed by caller-chosen identifiers.
type AttemptLimiter struct {
	client redis.UniversalClient
	script *redis.Script
	prefix string
}

func NewAttemptLimiter(client redis.UniversalClient, prefix string) *AttemptLimiter {
	if prefix == "" {
		prefix = "attempts:"
	}
	return &AttemptLimiter{
		client: client,
		script: redis.NewScript(fixedWindowScript),
		prefix: prefix,
	}
}

func (l *AttemptLimiter) Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	ttl := window.Milliseconds()
	if ttl <= 0 {
		ttl = 1
	}
	allowed, err := l.script.Run(ctx, l.client, []string{l.prefix + key}, ttl, limit).Int64()
	if err != nil {
		return false, auth.Infra(auth.ErrStoreUnavailable, err)
	}
	return allowed == 1, nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return auth.Infra(auth.ErrStoreUnavailable, err)
	}
	return nil
}
