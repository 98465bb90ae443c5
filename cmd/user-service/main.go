package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	config "github.com/NordCoder/Jobportal/internal/config/user-service"
	"github.com/NordCoder/Jobportal/internal/obs"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "../config/user-service.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting user-service", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb, err := initRedis(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	health := healthChecks(db, rdb)
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, health, logger)

	a, err := wiring(cfg, db, rdb, logger)
	if err != nil {
		logger.Fatal("wiring", zap.Error(err))
	}

	runner, prod := startOutbox(rootCtx, cfg, db, logger)
	defer func() { _ = prod.Close() }()

	grpcServer, grpcHealth, grpcLn, err := buildGRPCServer(cfg, a)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}
	grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	grpcErrCh := make(chan error, 1)
	go func() { grpcErrCh <- serveGRPC(grpcServer, grpcLn, logger) }()

	httpSrv, err := buildHTTPServer(cfg, a, health)
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, logger) }()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal")
	case err := <-grpcErrCh:
		if err != nil {
			logger.Error("grpc serve", zap.Error(err))
		}
	case err := <-httpErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(err))
		}
	}
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	grpcHealth.Shutdown()
	_ = httpSrv.Shutdown(shCtx)
	grpcServer.GracefulStop()
	_ = ms.Shutdown(shCtx)
	runner.Wait()
	logger.Info("bye")
}
