package kafka

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/obs/retry"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, key, value []byte) error

type Consumer struct {
	reader  *kafka.Reader
	log     *zap.Logger
	cfg     *ConsumerConfig
	backoff retry.Backoff
}

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	FromBeginning bool
	Logger        *zap.Logger
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1e3,
		MaxBytes:          10e6,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})

	c := &Consumer{
		reader:  r,
		cfg:     cfg,
		backoff: retry.ExpoJitter{Base: 200 * time.Millisecond, Max: 5 * time.Second, Jitter: 0.1},
	}
	l := cfg.Logger
	if l == nil {
		l = zap.L()
	}
	return c.WithLogger(l)
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	if l == nil {
		return c
	}
	cp := *c
	cp.log = obs.Component(l, "kafka.consumer").With(
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.GroupID),
	)
	return &cp
}

// Consume runs h for each record until ctx ends. Records whose handler fails
// with ErrMalformed are committed and skipped. Other failures leave the offset
// uncommitted so the record is redelivered after a rebalance or restart.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	log := c.log
	log.Info("consumer started")

	failures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped")
				return ctx.Err()
			}
			wait := c.backoff.Next(failures)
			failures++
			if errors.Is(err, io.EOF) {
				log.Debug("fetch EOF; retry", zap.Duration("backoff", wait))
			} else {
				log.Warn("fetch failed; retry", zap.Error(err), zap.Duration("backoff", wait))
			}
			if !sleep(ctx, wait) {
				log.Info("consumer stopped")
				return ctx.Err()
			}
			continue
		}
		failures = 0

		if err := c.handle(ctx, h, msg); err != nil {
			if !errors.Is(err, ErrMalformed) {
				log.Error("handler error", zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
				continue
			}
			log.Warn("skipping malformed record", zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				log.Info("commit interrupted by context cancel")
				return ctx.Err()
			}
			log.Warn("commit failed; will retry later", zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, msg kafka.Message) error {
	hdrs := msg.Headers
	ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier{hs: &hdrs})
	ctx, span := otel.Tracer("kafka.consumer").Start(ctx, "kafka.consume "+msg.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(msg.Topic),
			semconv.MessagingOperationReceive,
			semconv.MessagingKafkaDestinationPartition(msg.Partition),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
		),
	)
	defer span.End()

	return obs.FailSpan(span, h(ctx, msg.Key, msg.Value))
}

func (c *Consumer) Close() error { return c.reader.Close() }

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
