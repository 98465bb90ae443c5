package kafka

import (
	"context"
	"fmt"

	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
)

type Producer struct {
	w     *kafka.Writer
	topic string
	log   *zap.Logger
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
		topic: topic,
		log:   obs.Component(zap.L(), "kafka.producer").With(zap.String("topic", topic)),
	}
}

func (p *Producer) WithLogger(l *zap.Logger) *Producer {
	if l == nil {
		return p
	}
	cp := *p
	cp.log = obs.Component(l, "kafka.producer").With(zap.String("topic", p.topic))
	return &cp
}

// PublishProto writes m keyed by key. The record carries the message's full
// proto name and the caller's trace context in its headers.
func (p *Producer) PublishProto(ctx context.Context, key []byte, m proto.Message) error {
	value, err := proto.Marshal(m)
	if err != nil {
		return fmt.Errorf("kafka: marshal: %w", err)
	}
	typ := string(m.ProtoReflect().Descriptor().FullName())

	ctx, span := otel.Tracer("kafka.producer").Start(ctx, "kafka.produce "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingOperationPublish,
			semconv.MessagingMessageBodySize(len(value)),
		),
	)
	defer span.End()

	hdrs := []kafka.Header{{Key: HeaderMessageType, Value: []byte(typ)}}
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{hs: &hdrs})

	if err := p.w.WriteMessages(ctx, kafka.Message{Key: key, Value: value, Headers: hdrs}); err != nil {
		obs.WithTrace(ctx, p.log).Error("kafka write failed", zap.String("type", typ), zap.Error(err))
		return obs.FailSpan(span, fmt.Errorf("kafka: write %s: %w", p.topic, err))
	}
	obs.WithTrace(ctx, p.log).Debug("message published", zap.String("type", typ), zap.Int("value_len", len(value)))
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }
