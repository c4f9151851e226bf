// migrate applies the embedded SQL migrations to DATABASE_URL. Usage: migrate -direction up|down.
package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	"repairdesk/backend/internal/config"
	"repairdesk/backend/internal/db/migrate"
	"repairdesk/backend/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.New("development", "info", "migrate").Fatal("config", zap.Error(err))
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "migrate")
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is not set; create a .env or set DATABASE_URL")
		os.Exit(1)
	}
	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		logger.Error("migrate failed", zap.String("direction", *direction), zap.Error(err))
		os.Exit(1)
	}
	logger.Info("migrations applied", zap.String("direction", *direction))
}
