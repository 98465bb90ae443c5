package redis

import (
	"context"
	"errors"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/redis/go-redis/v9"
)

var _ auth.OTPStore = (*OTPStore)(nil)

// compareAndConsume returns -1 when the key is absent, 0 on mismatch and 1
// after deleting a matching code.
const compareAndConsume = `
local v = redis.call("GET", KEYS[1])
if not v then
  return -1
end
if v ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
return 1
`

type OTPStore struct {
	client redis.UniversalClient
	script *redis.Script
}

func NewOTPStore(client redis.UniversalClient) *OTPStore {
	return &OTPStore{client: client, script: redis.NewScript(compareAndConsume)}
}

func (s *OTPStore) Store(ctx context.Context, key, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, code, ttl).Err(); err != nil {
		return auth.Infra(auth.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *OTPStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, auth.Infra(auth.ErrStoreUnavailable, err)
	}
	return v, true, nil
}

func (s *OTPStore) Consume(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return auth.Infra(auth.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *OTPStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, auth.Infra(auth.ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

// RemainingTTL is zero for an absent key.
func (s *OTPStore) RemainingTTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, auth.Infra(auth.ErrStoreUnavailable, err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *OTPStore) CompareAndConsume(ctx context.Context, key, code string) (auth.OTPMatch, error) {
	n, err := s.script.Run(ctx, s.client, []string{key}, code).Int64()
	if err != nil {
		return auth.OTPNotFound, auth.Infra(auth.ErrStoreUnavailable, err)
	}
	switch n {
	case 1:
		return auth.OTPMatched, nil
	case 0:
		return auth.OTPMismatch, nil
	default:
		return auth.OTPNotFound, nil
	}
}
