package main

import (
	"context"

	config "github.com/NordCoder/Jobportal/internal/config/user-service"
	"github.com/NordCoder/Jobportal/internal/obs"
	"go.uber.org/zap"
)

func initOTel(ctx context.Context, cfg *config.Config, logger *zap.Logger) (func(context.Context) error, error) {
	oc := cfg.OTEL.AsOTELConfig()
	oc.ServiceVersion = cfg.App.Version
	oc.Environment = cfg.App.Env
	closer, err := obs.SetupOTel(ctx, oc)
	if err != nil {
		return nil, err
	}
	logger.Info("otel ready", zap.Bool("enabled", cfg.OTEL.Enable))
	return closer.Shutdown, nil
}
