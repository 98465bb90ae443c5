package email_notifier_config

import (
	"time"

	"github.com/NordCoder/Jobportal/internal/obs"
	kafkarepo "github.com/NordCoder/Jobportal/internal/repository/kafka"
	pginfra "github.com/NordCoder/Jobportal/internal/repository/postgres"
)

type KafkaIn struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	GroupID       string   `mapstructure:"group_id"`
	FromBeginning bool     `mapstructure:"from_beginning"`
}

func (k *KafkaIn) AsConsumerConfig() *kafkarepo.ConsumerConfig {
	return &kafkarepo.ConsumerConfig{
		Brokers:       k.Brokers,
		GroupID:       k.GroupID,
		Topic:         k.Topic,
		FromBeginning: k.FromBeginning,
	}
}

type SMTP struct {
	Addr       string        `mapstructure:"addr"`
	From       string        `mapstructure:"from"`
	User       string        `mapstructure:"user"`
	Password   string        `mapstructure:"password"`
	UseTLS     bool          `mapstructure:"use_tls"`
	Timeout    time.Duration `mapstructure:"timeout"`
	SubjPrefix string        `mapstructure:"subj_prefix"`
}

type Mail struct {
	ProductName  string        `mapstructure:"product_name"`
	SignupTTL    time.Duration `mapstructure:"signup_ttl"`
	ResetTTL     time.Duration `mapstructure:"reset_ttl"`
	RecordToDB   bool          `mapstructure:"record_to_db"`
	SendAttempts int           `mapstructure:"send_attempts"`
}

type Server struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

func (oc *OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      oc.Enable,
		Endpoint:    oc.OTLPEndpoint,
		ServiceName: oc.ServiceName,
		SampleRatio: oc.SampleRatio,
	}
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func (lc *Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  lc.Level,
		Pretty: lc.Pretty,
		App:    "jobportal/email-notifier",
	}
}

type Config struct {
	DB     pginfra.Config `mapstructure:"db"`
	In     KafkaIn        `mapstructure:"kafka_in"`
	SMTP   SMTP           `mapstructure:"smtp"`
	Mail   Mail           `mapstructure:"mail"`
	Server Server         `mapstructure:"server"`
	OTEL   OTEL           `mapstructure:"otel"`
	Log    Log            `mapstructure:"log"`
}
