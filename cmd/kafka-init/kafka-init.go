package main

import (
	"context"
	"strings"

	"github.com/NordCoder/Jobportal/internal/obs"
	kafkarepo "github.com/NordCoder/Jobportal/internal/repository/kafka"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// kafka-init creates the mail topic (and any extra KAFKA_TOPICS) before the
// services start.
func main() {
	v := viper.New()
	v.SetDefault("kafka_broker", "kafka:9092")
	v.SetDefault("kafka_topics", "jobportal.mail")
	v.SetDefault("kafka_partitions", 1)
	v.SetDefault("kafka_rf", 1)
	v.SetDefault("kafka_wait", "30s")
	v.SetDefault("kafka_init_timeout", "60s")
	v.AutomaticEnv()

	log, err := obs.NewLogger(obs.LogConfig{Level: "info", App: "jobportal/kafka-init"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	brokers := splitList(v.GetString("kafka_broker"))
	spec := kafkarepo.TopicSpec{
		NumPartitions:     max(v.GetInt("kafka_partitions"), 1),
		ReplicationFactor: max(v.GetInt("kafka_rf"), 1),
		MaxWait:           v.GetDuration("kafka_wait"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.GetDuration("kafka_init_timeout"))
	defer cancel()

	for _, t := range splitList(v.GetString("kafka_topics")) {
		spec.Name = t
		if err := kafkarepo.EnsureTopic(ctx, brokers, spec, log); err != nil {
			log.Fatal("ensure topic", zap.String("topic", t), zap.Error(err))
		}
	}
	log.Info("kafka-init ok", zap.Strings("brokers", brokers))
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
