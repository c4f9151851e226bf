// seed inserts the demo principals used by quick login, one per role, plus a stored copy of the
// built-in device change policy. Idempotent: existing rows are left alone.
package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"repairdesk/backend/internal/app"
	"repairdesk/backend/internal/config"
	"repairdesk/backend/internal/db"
	identityrepo "repairdesk/backend/internal/identity/repository"
	"repairdesk/backend/internal/logging"
	policydomain "repairdesk/backend/internal/policy/domain"
	"repairdesk/backend/internal/policy/engine"
	policyrepo "repairdesk/backend/internal/policy/repository"
	"repairdesk/backend/internal/security"
	userrepo "repairdesk/backend/internal/user/repository"
)

const defaultPolicyID = "device-change-default"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("development", "info", "seed").Fatal("config", zap.Error(err))
	}
	logger := logging.New(cfg.Env, cfg.LogLevel, "seed")
	defer func() { _ = logger.Sync() }()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is not set; create a .env or set DATABASE_URL")
		os.Exit(1)
	}
	if cfg.DemoPassword == "" {
		logger.Error("DEMO_PASSWORD is not set; it becomes the password of every demo account")
		os.Exit(1)
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("db", zap.Error(err))
		os.Exit(1)
	}
	defer conn.Close()
	ctx := context.Background()

	n, err := app.SeedDemoUsers(ctx,
		userrepo.NewPostgresRepository(conn),
		identityrepo.NewPostgresRepository(conn),
		security.NewHasher(cfg.BcryptCost),
		cfg.DemoPassword,
	)
	if err != nil {
		logger.Error("seed demo users", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("demo users seeded", zap.Int("created", n))

	policies := policyrepo.NewPostgresRepository(conn)
	existing, err := policies.GetByID(ctx, defaultPolicyID)
	if err != nil {
		logger.Error("policy lookup", zap.Error(err))
		os.Exit(1)
	}
	if existing != nil {
		logger.Info("device change policy already present", zap.String("policy_id", defaultPolicyID))
		return
	}
	if err := policies.Create(ctx, &policydomain.Policy{
		ID:        defaultPolicyID,
		Name:      "Device change re-authentication",
		Rules:     engine.DefaultPolicy(),
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		logger.Error("create policy", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("device change policy seeded", zap.String("policy_id", defaultPolicyID))
}
