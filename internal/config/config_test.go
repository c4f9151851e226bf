package config

import (
	"errors"
	"testing"
	"time"

	userdomain "repairdesk/backend/internal/user/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want development", cfg.Env)
	}
	if cfg.SessionStore != StoreMemory || cfg.AttemptStore != StoreMemory {
		t.Errorf("stores = %q/%q, want memory/memory", cfg.SessionStore, cfg.AttemptStore)
	}
	timeouts := cfg.Timeouts()
	want := map[userdomain.Role]time.Duration{
		userdomain.RoleCustomer:   24 * time.Hour,
		userdomain.RoleTechnician: 12 * time.Hour,
		userdomain.RoleAdmin:      8 * time.Hour,
		userdomain.RoleOwner:      4 * time.Hour,
	}
	for role, d := range want {
		if timeouts[role] != d {
			t.Errorf("timeout[%s] = %v, want %v", role, timeouts[role], d)
		}
	}
	if cfg.InactivityTimeout != 30*time.Minute || cfg.HeartbeatInterval != time.Minute || cfg.SweepInterval != 5*time.Minute {
		t.Errorf("monitoring = %v/%v/%v", cfg.InactivityTimeout, cfg.HeartbeatInterval, cfg.SweepInterval)
	}
	if cfg.LockoutThreshold != 5 || cfg.LockoutDuration != 15*time.Minute {
		t.Errorf("lockout = %d/%v, want 5/15m", cfg.LockoutThreshold, cfg.LockoutDuration)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.JWTIssuer != "repairdesk-auth" || cfg.JWTAudience != "repairdesk-app" {
		t.Errorf("JWT iss/aud = %q/%q", cfg.JWTIssuer, cfg.JWTAudience)
	}
	if cfg.DemoLoginEnabled {
		t.Error("DemoLoginEnabled should default to false")
	}
	if cfg.SecurityEventBuffer != 256 {
		t.Errorf("SecurityEventBuffer = %d, want 256", cfg.SecurityEventBuffer)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	t.Setenv("SESSION_TTL_OWNER", "2h")
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("SESSION_STORE", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionTTLOwner != 2*time.Hour {
		t.Errorf("SessionTTLOwner = %v, want 2h", cfg.SessionTTLOwner)
	}
	if cfg.LockoutThreshold != 3 {
		t.Errorf("LockoutThreshold = %d, want 3", cfg.LockoutThreshold)
	}
	if cfg.SessionStore != StoreRedis {
		t.Errorf("SessionStore = %q, want redis", cfg.SessionStore)
	}
	brokers := cfg.KafkaBrokersList()
	if len(brokers) != 2 || brokers[0] != "a:9092" || brokers[1] != "b:9092" {
		t.Errorf("KafkaBrokersList = %v", brokers)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"timeout order", map[string]string{"SESSION_TTL_OWNER": "9h"}},
		{"zero timeout", map[string]string{"SESSION_TTL_ADMIN": "0s"}},
		{"unknown store", map[string]string{"SESSION_STORE": "etcd"}},
		{"redis without url", map[string]string{"ATTEMPT_STORE": "redis"}},
		{"postgres without dsn", map[string]string{"SESSION_STORE": "postgres"}},
		{"heartbeat longer than inactivity", map[string]string{"SESSION_HEARTBEAT_INTERVAL": "45m"}},
		{"zero threshold", map[string]string{"LOCKOUT_THRESHOLD": "0"}},
		{"bcrypt too low", map[string]string{"BCRYPT_COST": "3"}},
		{"public key alone", map[string]string{"JWT_PUBLIC_KEY": "pub.pem"}},
		{"demo login in production", map[string]string{"DEMO_LOGIN_ENABLED": "true", "DEMO_PASSWORD": "x", "APP_ENV": "Production"}},
		{"demo login without password", map[string]string{"DEMO_LOGIN_ENABLED": "true"}},
		{"bad duration", map[string]string{"LOCKOUT_DURATION": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if err == nil {
				t.Fatalf("Load succeeded with %v: %+v", tt.env, cfg)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
		})
	}
}

func TestLoad_DemoLoginOutsideProduction(t *testing.T) {
	t.Setenv("DEMO_LOGIN_ENABLED", "true")
	t.Setenv("DEMO_PASSWORD", "demo-pass")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.DemoLoginEnabled || cfg.DemoPassword != "demo-pass" {
		t.Errorf("demo = %v/%q", cfg.DemoLoginEnabled, cfg.DemoPassword)
	}
}
