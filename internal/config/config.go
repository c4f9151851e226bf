// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	sessiondomain "repairdesk/backend/internal/session/domain"
	userdomain "repairdesk/backend/internal/user/domain"
)

// ErrInvalid is wrapped by every validation error returned from Load.
var ErrInvalid = errors.New("config: invalid")

// Store backends selectable for sessions and login attempts.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("development", "production").
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// InstallationID keys the single session this installation holds.
	InstallationID string `mapstructure:"INSTALLATION_ID"`
	// DevicePlatform overrides the reported platform (e.g. "android" inside a mobile shell).
	DevicePlatform string `mapstructure:"DEVICE_PLATFORM"`

	// DatabaseURL is the Postgres DSN. Required for postgres stores, migrations and seeding.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is a redis:// URL. Required for redis stores.
	RedisURL string `mapstructure:"REDIS_URL"`
	// SessionStore and AttemptStore select memory, redis or postgres.
	SessionStore string `mapstructure:"SESSION_STORE"`
	AttemptStore string `mapstructure:"ATTEMPT_STORE"`

	SessionTTLCustomer   time.Duration `mapstructure:"SESSION_TTL_CUSTOMER"`
	SessionTTLTechnician time.Duration `mapstructure:"SESSION_TTL_TECHNICIAN"`
	SessionTTLAdmin      time.Duration `mapstructure:"SESSION_TTL_ADMIN"`
	SessionTTLOwner      time.Duration `mapstructure:"SESSION_TTL_OWNER"`
	InactivityTimeout    time.Duration `mapstructure:"SESSION_INACTIVITY_TIMEOUT"`
	HeartbeatInterval    time.Duration `mapstructure:"SESSION_HEARTBEAT_INTERVAL"`
	SweepInterval        time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`

	LockoutThreshold int           `mapstructure:"LOCKOUT_THRESHOLD"`
	LockoutDuration  time.Duration `mapstructure:"LOCKOUT_DURATION"`

	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file. When empty an
	// ephemeral ES256 key is generated at startup.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; derived from the private key when empty.
	JWTPublicKey string        `mapstructure:"JWT_PUBLIC_KEY"`
	JWTIssuer    string        `mapstructure:"JWT_ISSUER"`
	JWTAudience  string        `mapstructure:"JWT_AUDIENCE"`
	JWTAccessTTL time.Duration `mapstructure:"JWT_ACCESS_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// DemoLoginEnabled turns on QuickLogin. Rejected when APP_ENV=production.
	DemoLoginEnabled bool   `mapstructure:"DEMO_LOGIN_ENABLED"`
	DemoPassword     string `mapstructure:"DEMO_PASSWORD"`

	// KafkaBrokers is a comma-separated list of broker addresses. Empty disables the Kafka sink.
	KafkaBrokers        string `mapstructure:"KAFKA_BROKERS"`
	SecurityEventsTopic string `mapstructure:"SECURITY_EVENTS_TOPIC"`
	// KafkaGroupID is the consumer group ID for the worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
	// LokiURL is where the worker pushes security events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`

	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTelInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// AgentGRPCAddr is the health endpoint of `shopctl agent`; MetricsAddr serves /metrics.
	AgentGRPCAddr string `mapstructure:"AGENT_GRPC_ADDR"`
	MetricsAddr   string `mapstructure:"METRICS_ADDR"`

	SecurityEventBuffer int `mapstructure:"SECURITY_EVENT_BUFFER"`
}

var defaults = map[string]any{
	"APP_ENV":                     "development",
	"LOG_LEVEL":                   "info",
	"INSTALLATION_ID":             "default",
	"DEVICE_PLATFORM":             "",
	"DATABASE_URL":                "",
	"REDIS_URL":                   "",
	"SESSION_STORE":               StoreMemory,
	"ATTEMPT_STORE":               StoreMemory,
	"SESSION_TTL_CUSTOMER":        "24h",
	"SESSION_TTL_TECHNICIAN":      "12h",
	"SESSION_TTL_ADMIN":           "8h",
	"SESSION_TTL_OWNER":           "4h",
	"SESSION_INACTIVITY_TIMEOUT":  "30m",
	"SESSION_HEARTBEAT_INTERVAL":  "1m",
	"SESSION_SWEEP_INTERVAL":      "5m",
	"LOCKOUT_THRESHOLD":           5,
	"LOCKOUT_DURATION":            "15m",
	"JWT_PRIVATE_KEY":             "",
	"JWT_PUBLIC_KEY":              "",
	"JWT_ISSUER":                  "repairdesk-auth",
	"JWT_AUDIENCE":                "repairdesk-app",
	"JWT_ACCESS_TTL":              "15m",
	"BCRYPT_COST":                 12,
	"DEMO_LOGIN_ENABLED":          false,
	"DEMO_PASSWORD":               "",
	"KAFKA_BROKERS":               "",
	"SECURITY_EVENTS_TOPIC":       "repairdesk-security-events",
	"KAFKA_GROUP_ID":              "repairdesk-security-worker",
	"LOKI_URL":                    "",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
	"AGENT_GRPC_ADDR":             ":8090",
	"METRICS_ADDR":                ":9100",
	"SECURITY_EVENT_BUFFER":       256,
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	cfg.AttemptStore = strings.ToLower(strings.TrimSpace(cfg.AttemptStore))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field rules. Load calls it; callers building Config by hand should too.
func (c *Config) Validate() error {
	for name, store := range map[string]string{"SESSION_STORE": c.SessionStore, "ATTEMPT_STORE": c.AttemptStore} {
		switch store {
		case StoreMemory:
		case StoreRedis:
			if c.RedisURL == "" {
				return invalid("%s=redis requires REDIS_URL", name)
			}
		case StorePostgres:
			if c.DatabaseURL == "" {
				return invalid("%s=postgres requires DATABASE_URL", name)
			}
		default:
			return invalid("%s must be one of memory, redis, postgres (got %q)", name, store)
		}
	}

	if err := c.Timeouts().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.InactivityTimeout <= 0 || c.HeartbeatInterval <= 0 || c.SweepInterval <= 0 {
		return invalid("SESSION_INACTIVITY_TIMEOUT, SESSION_HEARTBEAT_INTERVAL and SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.HeartbeatInterval >= c.InactivityTimeout {
		return invalid("SESSION_HEARTBEAT_INTERVAL must be shorter than SESSION_INACTIVITY_TIMEOUT")
	}

	if c.LockoutThreshold < 1 {
		return invalid("LOCKOUT_THRESHOLD must be at least 1")
	}
	if c.LockoutDuration <= 0 {
		return invalid("LOCKOUT_DURATION must be positive")
	}

	if c.JWTPublicKey != "" && c.JWTPrivateKey == "" {
		return invalid("JWT_PUBLIC_KEY requires JWT_PRIVATE_KEY")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return invalid("BCRYPT_COST must be between 4 and 31")
	}

	if c.DemoLoginEnabled {
		if c.IsProduction() {
			return invalid("DEMO_LOGIN_ENABLED must not be true when APP_ENV=production")
		}
		if c.DemoPassword == "" {
			return invalid("DEMO_LOGIN_ENABLED requires DEMO_PASSWORD")
		}
	}
	if c.SecurityEventBuffer < 1 {
		return invalid("SECURITY_EVENT_BUFFER must be at least 1")
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Timeouts returns the per-role session lifetimes.
func (c *Config) Timeouts() sessiondomain.Timeouts {
	return sessiondomain.Timeouts{
		userdomain.RoleCustomer:   c.SessionTTLCustomer,
		userdomain.RoleTechnician: c.SessionTTLTechnician,
		userdomain.RoleAdmin:      c.SessionTTLAdmin,
		userdomain.RoleOwner:      c.SessionTTLOwner,
	}
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka sink and the worker.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
