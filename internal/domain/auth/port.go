package auth

import (
	"context"
	"time"
)

type OTPStore interface {
	Store(ctx context.Context, key, code string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Consume(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	RemainingTTL(ctx context.Context, key string) (time.Duration, error)
	CompareAndConsume(ctx context.Context, key, code string) (OTPMatch, error)
}

type SessionStore interface {
	Put(ctx context.Context, userID, tokenID, token string, ttl time.Duration) error
	Get(ctx context.Context, userID, tokenID string) (string, bool, error)
	Delete(ctx context.Context, userID, tokenID string) error
	DeleteAll(ctx context.Context, userID string) (int, error)
	Count(ctx context.Context, userID string) (int, error)
}

type AttemptLimiter interface {
	// Hit records one attempt and reports whether it is still within the limit.
	Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Reset(ctx context.Context, key string) error
}

type EmailDispatcher interface {
	SendOTP(ctx context.Context, email, code string) error
	SendPasswordResetOTP(ctx context.Context, email, code string) error
	SendPasswordChanged(ctx context.Context, email string) error
}
