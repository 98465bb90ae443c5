package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Backoff interface {
	Next(attempt int) time.Duration
}

// ExpoJitter doubles Base per attempt up to Max, then spreads the result by
// up to +/-Jitter (a fraction).
type ExpoJitter struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64
}

func (b ExpoJitter) Next(attempt int) time.Duration {
	attempt = max(attempt, 0)
	d := float64(b.Base) * math.Pow(2, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if b.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*b.Jitter
	}
	return time.Duration(d)
}

type Policy struct {
	Name      string
	Attempts  int
	Backoff   Backoff
	Retryable func(error) bool
	OnAttempt func(attempt int, err error)
	OnExhaust func(lastErr error)
}

const (
	outcomeOK        = "ok"
	outcomeRetry     = "retry"
	outcomeExhausted = "exhausted"
	outcomeCanceled  = "canceled"
)

var (
	attemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "retry_attempts_total",
		Help: "Attempts made under a retry policy, by outcome.",
	}, []string{"name", "outcome"})
	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "retry_duration_seconds",
		Help:    "Wall time of a retried call including waits.",
		Buckets: prometheus.DefBuckets,
	}, []string{"name"})
)

func (p Policy) normalized() Policy {
	if p.Name == "" {
		p.Name = "default"
	}
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Retryable == nil {
		p.Retryable = retryUnlessPermanent
	}
	return p
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx ends. The last error is returned.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	p = p.normalized()
	start := time.Now()
	defer func() { callDuration.WithLabelValues(p.Name).Observe(time.Since(start).Seconds()) }()
	span := trace.SpanFromContext(ctx)

	for i := 0; ; i++ {
		err := fn(ctx)
		if err == nil {
			attemptsTotal.WithLabelValues(p.Name, outcomeOK).Inc()
			return nil
		}
		if p.OnAttempt != nil {
			p.OnAttempt(i, err)
		}
		span.AddEvent("retry.attempt", trace.WithAttributes(
			attribute.String("retry.name", p.Name),
			attribute.Int("retry.attempt", i+1),
		))
		if !p.Retryable(err) || i == p.Attempts-1 {
			attemptsTotal.WithLabelValues(p.Name, outcomeExhausted).Inc()
			if p.OnExhaust != nil {
				p.OnExhaust(err)
			}
			return err
		}
		attemptsTotal.WithLabelValues(p.Name, outcomeRetry).Inc()

		var wait time.Duration
		if p.Backoff != nil {
			wait = p.Backoff.Next(i)
		}
		if werr := pause(ctx, wait); werr != nil {
			attemptsTotal.WithLabelValues(p.Name, outcomeCanceled).Inc()
			return errors.Join(werr, err)
		}
	}
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
