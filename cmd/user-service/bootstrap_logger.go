package main

import (
	config "github.com/NordCoder/Jobportal/internal/config/user-service"
	"github.com/NordCoder/Jobportal/internal/obs"
	"go.uber.org/zap"
)

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.AsLoggerConfig())
}
