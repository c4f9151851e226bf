// Package app is the composition root: it builds every component of the session and
// access-control core from config.Config and owns their shutdown order.
package app

import (
	"context"
	"crypto"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"repairdesk/backend/internal/audit"
	auditrepo "repairdesk/backend/internal/audit/repository"
	"repairdesk/backend/internal/config"
	"repairdesk/backend/internal/db"
	"repairdesk/backend/internal/device"
	identityrepo "repairdesk/backend/internal/identity/repository"
	identityservice "repairdesk/backend/internal/identity/service"
	"repairdesk/backend/internal/loginattempt"
	attemptrepo "repairdesk/backend/internal/loginattempt/repository"
	"repairdesk/backend/internal/platform/clock"
	"repairdesk/backend/internal/policy/engine"
	policyrepo "repairdesk/backend/internal/policy/repository"
	"repairdesk/backend/internal/security"
	"repairdesk/backend/internal/session"
	sessiondomain "repairdesk/backend/internal/session/domain"
	sessionrepo "repairdesk/backend/internal/session/repository"
	telemetryotel "repairdesk/backend/internal/telemetry/otel"
	"repairdesk/backend/internal/telemetry/producer"
	userrepo "repairdesk/backend/internal/user/repository"
)

// ServiceName identifies this process to OTel and the logs.
const ServiceName = "repairdesk"

// App holds the wired components. Build it with New and release it with Close.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Auth      *identityservice.AuthService
	Sessions  *session.Manager
	Attempts  *loginattempt.Tracker
	Events    *audit.SecurityLog
	Policy    *engine.OPAEvaluator
	Tokens    *security.TokenProvider
	Devices   device.Provider
	Telemetry *telemetryotel.Providers

	// Users and Identities back the credential verifier: Postgres with a database, memory otherwise.
	Users      userrepo.Repository
	Identities identityrepo.Repository
	Hasher     *security.Hasher
	// History reads persisted security events; nil without a database.
	History auditrepo.Repository

	// DB and Redis are nil unless a component needed them.
	DB    *sql.DB
	Redis *redis.Client

	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

type options struct {
	clock       clock.Clock
	devices     device.Provider
	scheduler   session.Scheduler
	version     string
	onTerminate []session.TerminationHandler
	sinks       []audit.NamedSink
	sessions    sessionrepo.Store
	attempts    attemptrepo.Store
}

// Option customizes New.
type Option func(*options)

// WithClock replaces the system clock.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

// WithDevices replaces the system device provider.
func WithDevices(p device.Provider) Option { return func(o *options) { o.devices = p } }

// WithScheduler replaces the cron scheduler that drives session monitoring.
func WithScheduler(s session.Scheduler) Option { return func(o *options) { o.scheduler = s } }

// WithVersion sets the version reported in the user agent and OTel resource.
func WithVersion(v string) Option { return func(o *options) { o.version = v } }

// WithSessionStore replaces the store selected by SESSION_STORE.
func WithSessionStore(s sessionrepo.Store) Option { return func(o *options) { o.sessions = s } }

// WithAttemptStore replaces the store selected by ATTEMPT_STORE.
func WithAttemptStore(s attemptrepo.Store) Option { return func(o *options) { o.attempts = s } }

// WithTerminationHandler adds a handler called once per session ended by monitoring.
func WithTerminationHandler(h session.TerminationHandler) Option {
	return func(o *options) {
		if h != nil {
			o.onTerminate = append(o.onTerminate, h)
		}
	}
}

// WithSink adds a security event sink next to the configured ones.
func WithSink(name string, s audit.Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, audit.NamedSink{Name: name, Sink: s}) }
}

// New builds the application. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{clock: clock.System{}, version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.devices == nil {
		o.devices = device.NewSystemProvider(o.version, device.WithPlatform(cfg.DevicePlatform))
	}
	if o.scheduler == nil {
		o.scheduler = session.NewCronScheduler(logger.Named("scheduler"))
	}

	a := &App{Config: cfg, Logger: logger, Devices: o.devices}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.Telemetry, err = telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    ServiceName,
		ServiceVersion: o.version,
		Environment:    cfg.Env,
		Insecure:       cfg.OTelInsecure,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("app: telemetry: %w", err)
	}
	a.Telemetry.SetGlobal()
	a.onClose("telemetry", a.Telemetry.Shutdown)

	if err := a.connect(ctx, cfg); err != nil {
		return nil, err
	}

	a.Events = a.buildSecurityLog(cfg, o)

	attempts, err := a.attemptStore(cfg, o)
	if err != nil {
		return nil, err
	}
	a.Attempts = loginattempt.NewTracker(attempts, o.clock,
		loginattempt.WithThreshold(cfg.LockoutThreshold),
		loginattempt.WithLockout(cfg.LockoutDuration),
		loginattempt.WithEventLogger(a.Events),
		loginattempt.WithLogger(logger.Named("loginattempt")),
	)

	a.Tokens, err = buildTokenProvider(cfg, o.clock, logger)
	if err != nil {
		return nil, err
	}

	sessions, err := a.sessionStore(cfg, o)
	if err != nil {
		return nil, err
	}
	a.Sessions = session.NewManager(sessions, o.clock, o.devices, a.Events,
		session.WithInstallationID(cfg.InstallationID),
		session.WithTimeouts(cfg.Timeouts()),
		session.WithInactivityTimeout(cfg.InactivityTimeout),
		session.WithMonitorIntervals(cfg.HeartbeatInterval, cfg.SweepInterval),
		session.WithTokenIssuer(a.Tokens),
		session.WithScheduler(o.scheduler),
		session.WithTerminationHandler(fanOut(o.onTerminate)),
		session.WithLogger(logger.Named("session")),
	)
	a.onClose("session manager", func(context.Context) error { return a.Sessions.Close() })

	verifier, err := a.buildVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var policies policyrepo.Repository
	if a.DB != nil {
		policies = policyrepo.NewPostgresRepository(a.DB)
	}
	a.Policy = engine.NewOPAEvaluator(policies, logger.Named("policy"))

	a.Auth = identityservice.NewAuthService(verifier, a.Attempts, a.Sessions, o.devices, a.Events,
		identityservice.WithDeviceChangePolicy(a.Policy),
		identityservice.WithDemoLogin(identityservice.DemoLogin{Enabled: cfg.DemoLoginEnabled, Password: cfg.DemoPassword}),
		identityservice.WithTracerProvider(a.Telemetry.TracerProvider),
		identityservice.WithLogger(logger.Named("auth")),
	)
	return a, nil
}

// Close releases components in reverse construction order. The security log is drained
// before its sinks' transports close.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.Logger.Warn("close failed", zap.String("component", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onClose(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) connect(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("app: postgres: %w", err)
		}
		a.DB = conn
		a.onClose("postgres", func(context.Context) error { return conn.Close() })
	}
	if cfg.SessionStore == config.StoreRedis || cfg.AttemptStore == config.StoreRedis {
		client, err := db.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
		a.Redis = client
		a.onClose("redis", func(context.Context) error { return client.Close() })
	}
	return nil
}

func (a *App) buildSecurityLog(cfg *config.Config, o options) *audit.SecurityLog {
	logOpts := []audit.Option{
		audit.WithBufferSize(cfg.SecurityEventBuffer),
		audit.WithClock(o.clock),
		audit.WithLogger(a.Logger.Named("audit")),
		audit.WithSink("zap", audit.ZapSink(a.Logger.Named("security"))),
		audit.WithSink("otel", telemetryotel.NewSecurityEventSink(a.Telemetry.LoggerProvider)),
	}
	if a.DB != nil {
		a.History = auditrepo.NewPostgresRepository(a.DB)
		logOpts = append(logOpts, audit.WithSink("postgres", audit.RepositorySink(a.History)))
	}
	if kp := producer.NewKafkaProducer(cfg.KafkaBrokersList(), cfg.SecurityEventsTopic); kp != nil {
		logOpts = append(logOpts, audit.WithSink("kafka", kp))
		a.onClose("kafka producer", func(context.Context) error { return kp.Close() })
	}
	for _, s := range o.sinks {
		logOpts = append(logOpts, audit.WithSink(s.Name, s.Sink))
	}
	events := audit.NewSecurityLog(o.devices, logOpts...)
	a.onClose("security log", events.Close)
	return events
}

func (a *App) attemptStore(cfg *config.Config, o options) (attemptrepo.Store, error) {
	if o.attempts != nil {
		return o.attempts, nil
	}
	switch cfg.AttemptStore {
	case config.StoreRedis:
		return attemptrepo.NewRedisStore(a.Redis), nil
	case config.StorePostgres:
		return attemptrepo.NewPostgresStore(a.DB), nil
	case config.StoreMemory, "":
		return attemptrepo.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("app: unknown attempt store %q", cfg.AttemptStore)
}

func (a *App) sessionStore(cfg *config.Config, o options) (sessionrepo.Store, error) {
	if o.sessions != nil {
		return o.sessions, nil
	}
	switch cfg.SessionStore {
	case config.StoreRedis:
		return sessionrepo.NewRedisStore(a.Redis, ""), nil
	case config.StorePostgres:
		return sessionrepo.NewPostgresStore(a.DB), nil
	case config.StoreMemory, "":
		return sessionrepo.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("app: unknown session store %q", cfg.SessionStore)
}

// buildVerifier uses the Postgres directory when a database is configured. Otherwise it uses an
// in-memory directory holding the demo principals, seeded when demo login is enabled.
func (a *App) buildVerifier(ctx context.Context, cfg *config.Config) (*identityservice.PasswordVerifier, error) {
	a.Hasher = security.NewHasher(cfg.BcryptCost)
	if a.DB != nil {
		a.Users = userrepo.NewPostgresRepository(a.DB)
		a.Identities = identityrepo.NewPostgresRepository(a.DB)
	} else {
		users := userrepo.NewMemoryRepository()
		identities := identityrepo.NewMemoryRepository()
		if cfg.DemoLoginEnabled {
			if _, err := SeedDemoUsers(ctx, users, identities, a.Hasher, cfg.DemoPassword); err != nil {
				return nil, fmt.Errorf("app: %w", err)
			}
		}
		a.Users, a.Identities = users, identities
	}
	return identityservice.NewPasswordVerifier(a.Users, a.Identities, a.Hasher, a.Logger.Named("verifier")), nil
}

func buildTokenProvider(cfg *config.Config, c clock.Clock, logger *zap.Logger) (*security.TokenProvider, error) {
	var (
		priv crypto.Signer
		pub  crypto.PublicKey
		err  error
	)
	if cfg.JWTPrivateKey != "" {
		priv, pub, err = security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
		if err != nil {
			return nil, fmt.Errorf("app: jwt keys: %w", err)
		}
	} else {
		key, err := security.GenerateES256Key()
		if err != nil {
			return nil, fmt.Errorf("app: jwt keys: %w", err)
		}
		priv, pub = key, key.Public()
		logger.Warn("JWT_PRIVATE_KEY not set; using an ephemeral ES256 key, sessions cannot be refreshed after restart")
	}
	tp, err := security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessTTL, c)
	if err != nil {
		return nil, fmt.Errorf("app: token provider: %w", err)
	}
	return tp, nil
}

func fanOut(handlers []session.TerminationHandler) session.TerminationHandler {
	if len(handlers) == 0 {
		return nil
	}
	return func(t sessiondomain.Termination) {
		for _, h := range handlers {
			h(t)
		}
	}
}
