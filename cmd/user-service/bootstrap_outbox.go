package main

import (
	"context"

	config "github.com/NordCoder/Jobportal/internal/config/user-service"
	"github.com/NordCoder/Jobportal/internal/obs/retry"
	"github.com/NordCoder/Jobportal/internal/outbox"
	"github.com/NordCoder/Jobportal/internal/repository/kafka"
	pg "github.com/NordCoder/Jobportal/internal/repository/postgres"
	"go.uber.org/zap"
)

// startOutbox drains queued mail rows into the mail topic until ctx ends.
func startOutbox(ctx context.Context, cfg *config.Config, db *pg.DB, logger *zap.Logger) (*outbox.Runner, *kafka.Producer) {
	prod := kafka.BootstrapProducer(ctx, cfg.Kafka.Brokers, kafka.TopicSpec{
		Name:              cfg.Kafka.MailTopic,
		NumPartitions:     cfg.Kafka.Partitions,
		ReplicationFactor: cfg.Kafka.Replication,
	}, logger)

	dispatch := outbox.MakeGlobalOutboxHandler(kafka.NewMailEventsKafka(prod), retry.DefaultOutboxPolicy(logger))
	runner := outbox.NewOutboxRunner(logger, pg.NewOutboxRepo(db), dispatch, cfg.Outbox)
	runner.Start(ctx)
	logger.Info("outbox runner started",
		zap.String("topic", cfg.Kafka.MailTopic), zap.Int("workers", cfg.Outbox.Workers))
	return runner, prod
}
