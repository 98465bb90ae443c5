package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/NordCoder/Jobportal/internal/config/email-notifier"
	"github.com/NordCoder/Jobportal/internal/obs"
	"github.com/NordCoder/Jobportal/internal/repository/kafka"
	pg "github.com/NordCoder/Jobportal/internal/repository/postgres"
	"go.uber.org/zap"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "../config/email-notifier.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting email-notifier",
		zap.String("topic", cfg.In.Topic),
		zap.String("group_id", cfg.In.GroupID),
		zap.String("smtp_addr", cfg.SMTP.Addr),
		zap.Bool("record_deliveries", cfg.Mail.RecordToDB),
	)

	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Warn("otel init; tracing disabled", zap.Error(err))
		otelCloser = &obs.OTel{}
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	checks := obs.Checks{}
	var db *pg.DB
	if cfg.Mail.RecordToDB {
		db, err = pg.NewDB(rootCtx, cfg.DB)
		if err != nil {
			l.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		checks["db"] = db.Ping
		l.Info("db connected")
	}
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, checks, l)

	consCfg := cfg.In.AsConsumerConfig()
	consCfg.Logger = l
	cons := kafka.BootstrapConsumer(rootCtx, consCfg, kafka.TopicSpec{Name: cfg.In.Topic}, l)
	defer func() { _ = cons.Close() }()

	ctrl := wiring(cfg, db, cons, l)
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(rootCtx) }()

	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
		<-done
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("controller stopped", zap.Error(err))
		}
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
