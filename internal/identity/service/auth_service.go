// Package service holds the credential verifier and the AuthService, the API the rest of the
// application uses for login, logout, session and permission queries.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"repairdesk/backend/internal/device"
	devicedomain "repairdesk/backend/internal/device/domain"
	"repairdesk/backend/internal/loginattempt"
	logindomain "repairdesk/backend/internal/loginattempt/domain"
	"repairdesk/backend/internal/metrics"
	"repairdesk/backend/internal/platform/rbac"
	"repairdesk/backend/internal/policy/engine"
	"repairdesk/backend/internal/session"
	sessiondomain "repairdesk/backend/internal/session/domain"
	userdomain "repairdesk/backend/internal/user/domain"
)

var (
	// ErrAccountLocked is wrapped by *LockedError.
	ErrAccountLocked = errors.New("account locked")
	// ErrDemoLoginDisabled is returned by QuickLogin unless demo login is enabled.
	ErrDemoLoginDisabled = errors.New("demo login disabled")
)

// Security event names raised by the AuthService.
const (
	EventLoginFailed    = "login_failed"
	EventLoginSucceeded = "login_succeeded"
	EventLoginBlocked   = "login_blocked_locked"
	EventLogout         = "logout"
	EventReauthRequired = "device_reauth_required"
)

// LockedError reports a login refused because the identifier is locked.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("account locked, try again in %s", e.Remaining.Round(time.Second))
}

func (e *LockedError) Unwrap() error { return ErrAccountLocked }

// Sessions is the session manager surface the AuthService drives.
type Sessions interface {
	Create(ctx context.Context, p userdomain.Principal) (*sessiondomain.Session, error)
	Current(ctx context.Context) *sessiondomain.Session
	Clear(ctx context.Context) error
	DetectSuspiciousActivity(ctx context.Context, p userdomain.Principal) bool
}

// Attempts is the login attempt tracker surface.
type Attempts interface {
	IsLocked(ctx context.Context, identifier string) (bool, error)
	RemainingLockout(ctx context.Context, identifier string) (time.Duration, error)
	RecordAttempt(ctx context.Context, identifier string, success bool) (*logindomain.Record, error)
}

// EventLogger receives security events. Implementations must not block.
type EventLogger interface {
	LogSecurityEvent(ctx context.Context, name string, details map[string]any)
}

// DemoLogin maps roles to the fixed demo accounts used by QuickLogin.
type DemoLogin struct {
	Enabled  bool
	Password string
}

// DemoIdentifier returns the demo account email for role.
func DemoIdentifier(role userdomain.Role) string {
	return string(role) + "@demo.repairdesk.test"
}

// AuthService implements login, logout, session and permission queries over the session manager,
// the login attempt tracker and the permission resolver.
type AuthService struct {
	verifier CredentialVerifier
	attempts Attempts
	sessions Sessions
	events   EventLogger
	devices  device.Provider
	checker  rbac.Checker
	routes   *rbac.RouteGuard
	policy   engine.Evaluator
	demo     DemoLogin
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option configures an AuthService.
type Option func(*AuthService)

// WithChecker sets the permission resolver. Default rbac.Default.
func WithChecker(c rbac.Checker) Option {
	return func(s *AuthService) {
		if c != nil {
			s.checker = c
		}
	}
}

// WithRouteGuard sets the route guard. Default guards rbac.DefaultRoutes with the configured checker.
func WithRouteGuard(g *rbac.RouteGuard) Option {
	return func(s *AuthService) { s.routes = g }
}

// WithDeviceChangePolicy sets the evaluator used by EvaluateDeviceChange. Default is the built-in OPA policy.
func WithDeviceChangePolicy(e engine.Evaluator) Option {
	return func(s *AuthService) { s.policy = e }
}

// WithDemoLogin enables QuickLogin.
func WithDemoLogin(d DemoLogin) Option {
	return func(s *AuthService) { s.demo = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *AuthService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracerProvider sets the tracer provider for login spans. Default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *AuthService) {
		if tp != nil {
			s.tracer = tp.Tracer("repairdesk/identity")
		}
	}
}

// NewAuthService returns an AuthService. events may be nil.
func NewAuthService(verifier CredentialVerifier, attempts Attempts, sessions Sessions, devices device.Provider, events EventLogger, opts ...Option) *AuthService {
	s := &AuthService{
		verifier: verifier,
		attempts: attempts,
		sessions: sessions,
		devices:  devices,
		events:   events,
		checker:  rbac.Default,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("repairdesk/identity"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.routes == nil {
		s.routes = rbac.NewRouteGuard(s.checker, rbac.DefaultRoutes())
	}
	if s.policy == nil {
		s.policy = engine.NewOPAEvaluator(nil, s.logger)
	}
	return s
}

// Login checks the lockout, verifies the credentials, records the outcome and creates a session.
// A locked identifier returns *LockedError without verifying. Failed verification returns
// ErrInvalidCredentials. The outcome is recorded even if ctx is canceled afterwards.
func (s *AuthService) Login(ctx context.Context, identifier, secret string) (*sessiondomain.Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.Login")
	defer span.End()

	sess, err := s.login(ctx, identifier, secret)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("principal.role", string(sess.Principal.Role)))
	return sess, nil
}

func (s *AuthService) login(ctx context.Context, identifier, secret string) (*sessiondomain.Session, error) {
	id := loginattempt.Normalize(identifier)
	if id == "" {
		return nil, ErrInvalidCredentials
	}

	remaining, err := s.attempts.RemainingLockout(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("auth: lockout check: %w", err)
	}
	if remaining > 0 {
		metrics.LoginAttemptsTotal.WithLabelValues("blocked").Inc()
		s.logEvent(ctx, EventLoginBlocked, map[string]any{
			"identifier":   id,
			"remaining_ms": remaining.Milliseconds(),
		})
		return nil, &LockedError{Remaining: remaining}
	}

	p, verr := s.verifier.Verify(ctx, id, secret)
	rctx := context.WithoutCancel(ctx)
	if verr != nil {
		rec, err := s.attempts.RecordAttempt(rctx, id, false)
		if err != nil {
			s.logger.Error("failed to record login failure", zap.String("identifier", id), zap.Error(err))
		}
		details := map[string]any{"identifier": id}
		if rec != nil {
			details["attempts"] = rec.Count
		}
		s.logEvent(rctx, EventLoginFailed, details)
		return nil, ErrInvalidCredentials
	}
	if _, err := s.attempts.RecordAttempt(rctx, id, true); err != nil {
		s.logger.Error("failed to record login success", zap.String("identifier", id), zap.Error(err))
	}

	sess, err := s.sessions.Create(ctx, *p)
	if err != nil {
		return nil, err
	}
	s.logEvent(rctx, EventLoginSucceeded, map[string]any{
		"identifier":   id,
		"principal_id": sess.Principal.ID,
		"role":         string(sess.Principal.Role),
		"session_id":   sess.ID,
	})
	return sess, nil
}

// QuickLogin logs in as the demo account for role.
func (s *AuthService) QuickLogin(ctx context.Context, role userdomain.Role) (*sessiondomain.Session, error) {
	if !s.demo.Enabled {
		return nil, ErrDemoLoginDisabled
	}
	if !role.Valid() {
		return nil, userdomain.ErrUnknownRole
	}
	return s.Login(ctx, DemoIdentifier(role), s.demo.Password)
}

// Logout ends the current session. Logging out without a session is not an error.
func (s *AuthService) Logout(ctx context.Context) error {
	cur := s.sessions.Current(ctx)
	if err := s.sessions.Clear(ctx); err != nil {
		return err
	}
	if cur != nil {
		s.logEvent(ctx, EventLogout, map[string]any{
			"session_id":   cur.ID,
			"principal_id": cur.Principal.ID,
		})
	}
	return nil
}

// CurrentSession returns the valid session or nil. Storage failures read as no session.
func (s *AuthService) CurrentSession(ctx context.Context) *sessiondomain.Session {
	return s.sessions.Current(ctx)
}

// principal returns the current session's principal, or false when signed out or deactivated.
func (s *AuthService) principal(ctx context.Context) (userdomain.Principal, bool) {
	cur := s.sessions.Current(ctx)
	if cur == nil || !cur.Principal.Active {
		return userdomain.Principal{}, false
	}
	return cur.Principal, true
}

// HasPermission reports whether the current principal holds perm. False when signed out.
func (s *AuthService) HasPermission(ctx context.Context, perm rbac.Permission) bool {
	p, ok := s.principal(ctx)
	return ok && s.checker.HasPermission(p.Role, perm, p.Permissions)
}

// HasAnyPermission reports whether the current principal holds at least one of perms.
func (s *AuthService) HasAnyPermission(ctx context.Context, perms ...rbac.Permission) bool {
	p, ok := s.principal(ctx)
	return ok && s.checker.HasAnyPermission(p.Role, perms, p.Permissions)
}

// HasAllPermissions reports whether the current principal holds every one of perms. An empty list
// is true for any signed-in principal.
func (s *AuthService) HasAllPermissions(ctx context.Context, perms ...rbac.Permission) bool {
	p, ok := s.principal(ctx)
	return ok && s.checker.HasAllPermissions(p.Role, perms, p.Permissions)
}

// CanAccessRoute reports whether the current principal may open route.
func (s *AuthService) CanAccessRoute(ctx context.Context, route string) bool {
	p, ok := s.principal(ctx)
	return ok && s.routes.CanAccessRoute(p.Role, route, p.Permissions)
}

// IsAccountLocked reports whether identifier is currently locked.
func (s *AuthService) IsAccountLocked(ctx context.Context, identifier string) (bool, error) {
	return s.attempts.IsLocked(ctx, identifier)
}

// GetRemainingLockoutTime returns how long identifier stays locked; 0 when not locked.
func (s *AuthService) GetRemainingLockoutTime(ctx context.Context, identifier string) (time.Duration, error) {
	return s.attempts.RemainingLockout(ctx, identifier)
}

// RecordLoginAttempt records an outcome for identifier outside the Login flow.
func (s *AuthService) RecordLoginAttempt(ctx context.Context, identifier string, success bool) error {
	_, err := s.attempts.RecordAttempt(ctx, identifier, success)
	return err
}

// DetectSuspiciousActivity compares the current session's device with the device now. False when
// signed out.
func (s *AuthService) DetectSuspiciousActivity(ctx context.Context) bool {
	cur := s.sessions.Current(ctx)
	if cur == nil {
		return false
	}
	return s.sessions.DetectSuspiciousActivity(ctx, cur.Principal)
}

// EvaluateDeviceChange collects the device fingerprint and, when it differs from the session's,
// asks the device change policy whether the principal must sign in again. A required re-auth is
// logged as a security event; acting on it is left to the caller.
func (s *AuthService) EvaluateDeviceChange(ctx context.Context) (engine.Decision, error) {
	cur := s.sessions.Current(ctx)
	if cur == nil {
		return engine.Decision{}, session.ErrNoSession
	}
	fresh, err := s.devices.Collect(ctx)
	if err != nil {
		return engine.Decision{}, fmt.Errorf("%w: %w", session.ErrDeviceInfo, err)
	}
	mismatch := devicedomain.Compare(cur.Fingerprint, fresh)
	if !mismatch.Any() {
		return engine.Decision{}, nil
	}
	var changed []string
	if mismatch.Platform {
		changed = append(changed, "platform")
	}
	if mismatch.Address {
		changed = append(changed, "address")
	}
	d, err := s.policy.EvaluateDeviceChange(ctx, engine.DeviceChange{
		Principal: cur.Principal,
		Stored:    cur.Fingerprint,
		Current:   fresh,
		Changed:   changed,
	})
	if err != nil {
		return engine.Decision{}, err
	}
	if d.ReauthRequired {
		s.logEvent(ctx, EventReauthRequired, map[string]any{
			"session_id":   cur.ID,
			"principal_id": cur.Principal.ID,
			"reason":       d.Reason,
			"changed":      changed,
		})
	}
	return d, nil
}

// LogSecurityEvent forwards an application event to the security event log.
func (s *AuthService) LogSecurityEvent(ctx context.Context, name string, details map[string]any) {
	s.logEvent(ctx, name, details)
}

func (s *AuthService) logEvent(ctx context.Context, name string, details map[string]any) {
	if s.events != nil {
		s.events.LogSecurityEvent(ctx, name, details)
	}
}
