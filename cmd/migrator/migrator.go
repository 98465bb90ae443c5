package main

import (
	"context"
	"os"
	"time"

	"github.com/NordCoder/Jobportal/internal/obs"
	pg "github.com/NordCoder/Jobportal/internal/repository/postgres"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// migrator applies the embedded schema: migrator [up|down|status|redo|version] [args].
func main() {
	v := viper.New()
	v.SetDefault("db_dsn", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("migrate_timeout", "2m")
	v.AutomaticEnv()

	log, err := obs.NewLogger(obs.LogConfig{Level: v.GetString("log_level"), App: "jobportal/migrator"})
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	dsn := v.GetString("db_dsn")
	if dsn == "" {
		log.Fatal("DB_DSN is empty")
	}
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.GetDuration("migrate_timeout"))
	defer cancel()

	db, err := pg.NewDB(ctx, pg.Config{DSN: dsn, MaxConns: 2})
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	started := time.Now()
	if err := db.Migrate(ctx, command, os.Args[min(2, len(os.Args)):]...); err != nil {
		log.Fatal("migrate", zap.String("command", command), zap.Error(err))
	}
	log.Info("migrations done", zap.String("command", command), zap.Duration("took", time.Since(started)))
}
