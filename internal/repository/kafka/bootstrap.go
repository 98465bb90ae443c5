package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func BootstrapConsumer(ctx context.Context, cfg *ConsumerConfig, spec TopicSpec, logger *zap.Logger) *Consumer {
	if spec.Name == "" {
		spec.Name = cfg.Topic
	}
	if spec.MaxWait <= 0 {
		spec.MaxWait = 5 * time.Second
	}
	if err := EnsureTopic(ctx, cfg.Brokers, spec, logger); err != nil {
		logger.Warn("ensure topic failed; consumer will retry on fetch", zap.Error(err))
	}
	return NewConsumer(cfg)
}

func BootstrapProducer(ctx context.Context, brokers []string, spec TopicSpec, logger *zap.Logger) *Producer {
	if err := EnsureTopic(ctx, brokers, spec, logger); err != nil {
		logger.Warn("ensure topic failed; relying on auto creation", zap.Error(err))
	}
	return NewProducer(brokers, spec.Name).WithLogger(logger)
}
