package redis

import (
	"context"
	"errors"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/auth"
	"github.com/redis/go-redis/v9"
)

var _ auth.SessionStore = (*SessionStore)(nil)

const scanBatch = 100

type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "refresh_token:"
	}
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) key(userID, tokenID string) string {
	return s.prefix + userID + ":" + tokenID
}

func (s *SessionStore) pattern(userID string) string {
	return s.prefix + userID + ":*"
}

func (s *SessionStore) Put(ctx context.Context, userID, tokenID, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(userID, tokenID), token, ttl).Err(); err != nil {
		return auth.Infra(auth.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, userID, tokenID string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(userID, tokenID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, auth.Infra(auth.ErrStoreUnavailable, err)
	}
	return v, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, userID, tokenID string) error {
	if err := s.client.Del(ctx, s.key(userID, tokenID)).Err(); err != nil {
		return auth.Infra(auth.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteAll collects the user's keys over a full SCAN first and only then
// deletes them, so removal cannot move the cursor past unseen keys.
func (s *SessionStore) DeleteAll(ctx context.Context, userID string) (int, error) {
	var keys []string
	err := s.scan(ctx, userID, func(batch []string) error {
		keys = append(keys, batch...)
		return nil
	})
	if err != nil {
		return 0, auth.Infra(auth.ErrStoreUnavailable, err)
	}

	removed := 0
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		n, err := s.client.Del(ctx, keys[start:end]...).Result()
		removed += int(n)
		if err != nil {
			return removed, auth.Infra(auth.ErrStoreUnavailable, err)
		}
	}
	return removed, nil
}

func (s *SessionStore) Count(ctx context.Context, userID string) (int, error) {
	total := 0
	err := s.scan(ctx, userID, func(keys []string) error {
		total += len(keys)
		return nil
	})
	if err != nil {
		return 0, auth.Infra(auth.ErrStoreUnavailable, err)
	}
	return total, nil
}

func (s *SessionStore) scan(ctx context.Context, userID string, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.pattern(userID), scanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
