package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying under the default policies.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func retryUnlessPermanent(err error) bool {
	return err != nil && !IsPermanent(err) && !errors.Is(err, context.Canceled)
}

// DefaultOutboxPolicy covers publishing outbox rows to the broker.
func DefaultOutboxPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:      "outbox_publish",
		Attempts:  6,
		Backoff:   ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: retryUnlessPermanent,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("outbox retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox retries exhausted", zap.Error(err))
			}
		},
	}
}

// DefaultMailPolicy covers SMTP delivery in the notifier.
func DefaultMailPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:      "smtp_send",
		Attempts:  4,
		Backoff:   ExpoJitter{Base: 500 * time.Millisecond, Max: 10 * time.Second, Jitter: 0.2},
		Retryable: retryUnlessPermanent,
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("smtp retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("smtp retries exhausted", zap.Error(err))
			}
		},
	}
}
