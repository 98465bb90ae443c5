package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/NordCoder/Jobportal/internal/domain/outbox"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/obs/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	mPicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_picked_total", Help: "Messages picked into processing.",
	})
	mOk = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_processed_ok_total", Help: "Messages processed successfully.",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_processed_err_total", Help: "Handler errors.",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "outbox_tick_duration_seconds", Help: "Tick duration.",
		Buckets: prometheus.DefBuckets,
	})
	mBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_last_batch_size", Help: "Size of last picked batch.",
	})
	mDead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_parked_total", Help: "Rows moved to FAILED.",
	})
)

type Config struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	WaitTime      time.Duration `mapstructure:"wait_time"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
}

type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler
	cfg      Config

	wg sync.WaitGroup
}

func NewOutboxRunner(log *zap.Logger, repo outbox.Repository, dispatch outbox.GlobalHandler, cfg Config) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.WaitTime <= 0 {
		cfg.WaitTime = time.Second
	}
	if cfg.InProgressTTL <= 0 {
		cfg.InProgressTTL = time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &Runner{
		log:      obs.Component(log, "outbox.runner"),
		repo:     repo,
		dispatch: dispatch,
		cfg:      cfg,
	}
}

func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

// Wait blocks until every worker started by Start has returned.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	r.log.Info("outbox worker started", zap.Duration("wait", r.cfg.WaitTime))

	ticker := time.NewTicker(r.cfg.WaitTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox worker stop")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	t0 := time.Now()
	tr := otel.Tracer("outbox.runner")

	ctxSpan, span := tr.Start(ctx, "outbox.tick")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.limit", r.cfg.BatchSize),
		attribute.String("in_progress_ttl", r.cfg.InProgressTTL.String()),
	)

	messages, err := r.repo.PickBatch(ctxSpan, r.cfg.BatchSize, r.cfg.InProgressTTL)
	if err != nil {
		obs.FailSpan(span, err)
		mErr.Inc()
		obs.WithTrace(ctxSpan, r.log).Error("outbox pick error", zap.Error(err))
		return
	}
	mPicked.Add(float64(len(messages)))
	mBatchSize.Set(float64(len(messages)))

	okKeys := make([]string, 0, len(messages))
	for _, m := range messages {
		if r.process(ctx, m) {
			okKeys = append(okKeys, m.IdempotencyKey)
			mOk.Inc()
		}
	}

	if err := r.repo.MarkSuccess(ctxSpan, okKeys); err != nil {
		obs.FailSpan(span, err)
		mErr.Inc()
		obs.WithTrace(ctxSpan, r.log).Error("mark success error", zap.Error(err))
	}
	mTickDur.Observe(time.Since(t0).Seconds())
}

// process runs one row under the trace it was enqueued with. A failed row
// stays IN_PROGRESS and is picked again once the in-progress TTL passes,
// unless the failure is permanent or the row has used up its attempts.
func (r *Runner) process(ctx context.Context, m outbox.Message) bool {
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(m.TraceHeaders()))
	msgCtx, msgSpan := otel.Tracer("outbox.runner").Start(parent, "outbox.dispatch",
		trace.WithAttributes(
			attribute.String("outbox.key", m.IdempotencyKey),
			attribute.String("outbox.kind", m.Kind.String()),
			attribute.Int("outbox.attempts", m.Attempts),
		),
	)
	defer msgSpan.End()

	handler, err := r.dispatch(m.Kind)
	if err != nil {
		r.fail(msgCtx, m, retry.Permanent(err))
		return false
	}
	if err := handler(msgCtx, m.Data); err != nil {
		obs.FailSpan(msgSpan, err)
		r.fail(msgCtx, m, err)
		return false
	}
	return true
}

func (r *Runner) fail(ctx context.Context, m outbox.Message, cause error) {
	mErr.Inc()
	dead := retry.IsPermanent(cause) || m.Attempts+1 >= r.cfg.MaxAttempts
	log := obs.WithTrace(ctx, r.log).With(
		zap.String("key", m.IdempotencyKey),
		zap.Stringer("kind", m.Kind),
		zap.Int("attempt", m.Attempts+1),
		zap.Error(cause),
	)
	if dead {
		mDead.Inc()
		log.Error("outbox row parked")
	} else {
		log.Warn("outbox row failed; will retry")
	}
	if err := r.repo.MarkFailed(ctx, m.IdempotencyKey, cause.Error(), dead); err != nil {
		log.Error("mark failed error", zap.NamedError("mark_err", err))
	}
}
