package main

import (
	"context"

	config "github.com/NordCoder/Jobportal/internal/config/user-service"
	"github.com/NordCoder/Jobportal/internal/obs"
	pg "github.com/NordCoder/Jobportal/internal/repository/postgres"
	redisrepo "github.com/NordCoder/Jobportal/internal/repository/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func initDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*pg.DB, error) {
	db, err := pg.NewDB(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	logger.Info("db connected")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*redis.Client, error) {
	c, err := redisrepo.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr), zap.Int("db", cfg.Redis.DB))
	return c, nil
}

func healthChecks(db *pg.DB, rdb *redis.Client) obs.Checks {
	return obs.Checks{
		"db":    db.Ping,
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
}
