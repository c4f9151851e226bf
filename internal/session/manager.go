// Package session owns the installation's authenticated session: creation, lazy expiry,
// token rotation, activity tracking, background monitoring and device anomaly detection.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"repairdesk/backend/internal/device"
	devicedomain "repairdesk/backend/internal/device/domain"
	"repairdesk/backend/internal/metrics"
	"repairdesk/backend/internal/platform/clock"
	"repairdesk/backend/internal/session/domain"
	"repairdesk/backend/internal/session/repository"
	userdomain "repairdesk/backend/internal/user/domain"
)

var (
	// ErrNoSession is returned when an operation needs a valid session and none exists.
	ErrNoSession = errors.New("session: no active session")
	// ErrStorage wraps session store failures so callers can tell "not logged in" from "could not check".
	ErrStorage = errors.New("session: storage failure")
	// ErrDeviceInfo is returned when the device fingerprint needed for a new session cannot be collected.
	ErrDeviceInfo = errors.New("session: device info unavailable")
	// ErrInactivePrincipal is returned when creating a session for a deactivated principal.
	ErrInactivePrincipal = errors.New("session: principal is not active")
	// ErrPrincipalMismatch is returned when an update targets a principal other than the session's.
	ErrPrincipalMismatch = errors.New("session: principal does not own the session")
	// ErrTokenReuse is returned when a rotation hands back a token that is already in use.
	ErrTokenReuse = errors.New("session: token rotation reused a token")
)

// Security event names raised by the manager.
const (
	EventDeviceChange     = "device_change_detected"
	EventSessionTimeout   = "session_timeout"
	EventSessionInactive  = "session_inactive"
	EventPersistFailed    = "session_persist_failed"
	EventPrincipalRevoked = "principal_deactivated"
)

const (
	// DefaultInactivityTimeout is how long a session may go without activity.
	DefaultInactivityTimeout = 30 * time.Minute
	// DefaultHeartbeatInterval is how often a monitored session's activity is persisted.
	DefaultHeartbeatInterval = time.Minute
	// DefaultSweepInterval is how often a monitored session is checked for expiry and inactivity.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultMaxPersistFailures is how many consecutive heartbeat failures end a session.
	DefaultMaxPersistFailures = 3
	// DefaultInstallationID is the store key used when none is configured.
	DefaultInstallationID = "default"

	jobTimeout = 10 * time.Second
)

// TokenIssuer mints the opaque tokens carried by a session.
type TokenIssuer interface {
	Issue(sessionID string, p userdomain.Principal, expiresAt time.Time) (domain.Tokens, error)
	// Rotate validates current and returns a fresh pair; it must never return a token from current.
	Rotate(current domain.Tokens, sessionID string, p userdomain.Principal, expiresAt time.Time) (domain.Tokens, error)
}

// EventLogger receives security events. Implementations must not block.
type EventLogger interface {
	LogSecurityEvent(ctx context.Context, name string, details map[string]any)
}

// AttemptResetter clears failed-login history for an identifier.
type AttemptResetter interface {
	Reset(ctx context.Context, identifier string) error
}

// TerminationHandler is told, once per session, that monitoring ended it.
// It runs outside the manager's lock and may call back into the manager.
type TerminationHandler func(domain.Termination)

type monitor struct {
	sessionID   string
	principalID string
	// expiresAt is the last expiry seen for the session. A store with key expiry (Redis) may
	// drop the record before a job reads it, so the monitor decides from this instead.
	expiresAt time.Time
	handle    Handle
}

// Manager coordinates every session read and write for one installation.
type Manager struct {
	store   repository.Store
	clock   clock.Clock
	devices device.Provider
	events  EventLogger

	installationID     string
	timeouts           domain.Timeouts
	inactivity         time.Duration
	heartbeatInterval  time.Duration
	sweepInterval      time.Duration
	maxPersistFailures int
	issuer             TokenIssuer
	attempts           AttemptResetter
	scheduler          Scheduler
	onTerminate        TerminationHandler
	logger             *zap.Logger

	mu              sync.Mutex
	monitor         *monitor
	persistFailures int
	terminated      map[string]struct{}
	pending         []domain.Termination
	closed          bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithInstallationID sets the store key this manager owns.
func WithInstallationID(id string) Option {
	return func(m *Manager) {
		if id != "" {
			m.installationID = id
		}
	}
}

// WithTimeouts sets the per-role session lifetimes.
func WithTimeouts(t domain.Timeouts) Option {
	return func(m *Manager) {
		if len(t) > 0 {
			m.timeouts = t
		}
	}
}

// WithInactivityTimeout sets how long a session may go without activity.
func WithInactivityTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.inactivity = d
		}
	}
}

// WithMonitorIntervals sets the heartbeat and sweep intervals.
func WithMonitorIntervals(heartbeat, sweep time.Duration) Option {
	return func(m *Manager) {
		if heartbeat > 0 {
			m.heartbeatInterval = heartbeat
		}
		if sweep > 0 {
			m.sweepInterval = sweep
		}
	}
}

// WithMaxPersistFailures sets how many consecutive heartbeat failures end the session.
func WithMaxPersistFailures(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxPersistFailures = n
		}
	}
}

// WithTokenIssuer sets the token issuer. Without one, random opaque tokens are used.
func WithTokenIssuer(issuer TokenIssuer) Option {
	return func(m *Manager) { m.issuer = issuer }
}

// WithAttemptResetter clears the login identifier's failure history when a session is created.
func WithAttemptResetter(r AttemptResetter) Option {
	return func(m *Manager) { m.attempts = r }
}

// WithScheduler sets the scheduler used for monitoring.
func WithScheduler(s Scheduler) Option {
	return func(m *Manager) { m.scheduler = s }
}

// WithTerminationHandler registers the handler told about monitor-driven terminations.
func WithTerminationHandler(h TerminationHandler) Option {
	return func(m *Manager) { m.onTerminate = h }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager returns a Manager over store. events may be nil.
func NewManager(store repository.Store, c clock.Clock, devices device.Provider, events EventLogger, opts ...Option) *Manager {
	if c == nil {
		c = clock.System{}
	}
	m := &Manager{
		store:              store,
		clock:              c,
		devices:            devices,
		events:             events,
		installationID:     DefaultInstallationID,
		timeouts:           domain.DefaultTimeouts(),
		inactivity:         DefaultInactivityTimeout,
		heartbeatInterval:  DefaultHeartbeatInterval,
		sweepInterval:      DefaultSweepInterval,
		maxPersistFailures: DefaultMaxPersistFailures,
		issuer:             opaqueIssuer{},
		logger:             zap.NewNop(),
		terminated:         make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.scheduler == nil {
		m.scheduler = NewCronScheduler(m.logger)
	}
	return m
}

// Timeout returns the session lifetime for role.
func (m *Manager) Timeout(role userdomain.Role) time.Duration {
	return m.timeouts.For(role)
}

// Create starts a new session for p, replacing any existing one, and starts monitoring it.
// It fails if the device fingerprint cannot be collected or the session cannot be persisted.
func (m *Manager) Create(ctx context.Context, p userdomain.Principal) (*domain.Session, error) {
	if !p.Active {
		return nil, ErrInactivePrincipal
	}
	fp, err := m.devices.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceInfo, err)
	}

	var (
		created *domain.Session
		old     *monitor
	)
	err = m.withLock(func() error {
		if m.closed {
			return errors.New("session: manager closed")
		}
		now := m.clock.Now()
		s := &domain.Session{
			ID:             uuid.NewString(),
			InstallationID: m.installationID,
			Principal:      p.Clone(),
			ExpiresAt:      now.Add(m.timeouts.For(p.Role)),
			LastActivity:   now,
			Fingerprint:    fp,
			CreatedAt:      now,
		}
		tokens, err := m.issuer.Issue(s.ID, s.Principal, s.ExpiresAt)
		if err != nil {
			return fmt.Errorf("session: issue tokens: %w", err)
		}
		s.AccessToken, s.RefreshToken, s.RefreshJTI = tokens.Access, tokens.Refresh, tokens.RefreshJTI
		if err := m.store.Put(ctx, m.installationID, s); err != nil {
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}

		old = m.monitor
		m.monitor = nil
		if err := m.startMonitorLocked(s); err != nil {
			m.logger.Error("session monitoring did not start", zap.String("session_id", s.ID), zap.Error(err))
		}
		created = s
		return nil
	})
	if old != nil {
		<-old.handle.Stop().Done()
	}
	if err != nil {
		return nil, err
	}

	if m.attempts != nil && p.Email != "" {
		if err := m.attempts.Reset(context.WithoutCancel(ctx), p.Email); err != nil {
			m.logger.Warn("clearing login attempts failed", zap.String("principal_id", p.ID), zap.Error(err))
		}
	}
	metrics.SessionsCreatedTotal.WithLabelValues(string(p.Role)).Inc()
	m.logger.Info("session created",
		zap.String("session_id", created.ID),
		zap.String("principal_id", p.ID),
		zap.String("role", string(p.Role)),
		zap.Time("expires_at", created.ExpiresAt),
	)
	return created.Clone(), nil
}

// Current returns the valid session, or nil. Storage failures are logged and reported as no session.
func (m *Manager) Current(ctx context.Context) *domain.Session {
	s, err := m.Lookup(ctx)
	if err != nil {
		m.logger.Warn("session lookup failed; treating as signed out", zap.Error(err))
		return nil
	}
	return s
}

// Lookup returns the valid session, nil when there is none, or an ErrStorage error when the
// store could not be read. An expired or idle session is removed as a side effect.
func (m *Manager) Lookup(ctx context.Context) (*domain.Session, error) {
	var s *domain.Session
	err := m.withLock(func() error {
		var err error
		s, err = m.lookupLocked(ctx)
		return err
	})
	return s.Clone(), err
}

// Refresh rotates both tokens, bumps activity and recomputes expiry from the principal's role.
// It returns nil without error when there is no valid session.
func (m *Manager) Refresh(ctx context.Context) (*domain.Session, error) {
	var s *domain.Session
	err := m.withLock(func() error {
		cur, err := m.lookupLocked(ctx)
		if err != nil || cur == nil {
			return err
		}
		now := m.clock.Now()
		expiresAt := now.Add(m.timeouts.For(cur.Principal.Role))
		current := domain.Tokens{Access: cur.AccessToken, Refresh: cur.RefreshToken, RefreshJTI: cur.RefreshJTI}
		next, err := m.issuer.Rotate(current, cur.ID, cur.Principal, expiresAt)
		if err != nil {
			return fmt.Errorf("session: rotate tokens: %w", err)
		}
		if next.Access == "" || next.Refresh == "" || next.Access == current.Access || next.Refresh == current.Refresh {
			return ErrTokenReuse
		}
		cur.AccessToken, cur.RefreshToken, cur.RefreshJTI = next.Access, next.Refresh, next.RefreshJTI
		cur.ExpiresAt = expiresAt
		if now.After(cur.LastActivity) {
			cur.LastActivity = now
		}
		if err := m.store.Put(ctx, m.installationID, cur); err != nil {
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
		m.trackExpiryLocked(cur)
		s = cur
		return nil
	})
	switch {
	case err != nil:
		metrics.SessionRefreshesTotal.WithLabelValues("error").Inc()
	case s == nil:
		metrics.SessionRefreshesTotal.WithLabelValues("none").Inc()
	default:
		metrics.SessionRefreshesTotal.WithLabelValues("ok").Inc()
	}
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// UpdateActivity stamps the session's last activity with the current time. No session is a no-op.
func (m *Manager) UpdateActivity(ctx context.Context) error {
	return m.withLock(func() error {
		return m.updateActivityLocked(ctx)
	})
}

// Clear removes the session and stops its monitoring. It is idempotent and waits for any
// in-flight monitoring job to return unless ctx ends first.
func (m *Manager) Clear(ctx context.Context) error {
	var (
		mon *monitor
		sid string
	)
	err := m.withLock(func() error {
		mon = m.monitor
		m.monitor = nil
		m.persistFailures = 0
		if s, _ := m.store.Get(ctx, m.installationID); s != nil {
			sid = s.ID
		}
		if err := m.store.Delete(ctx, m.installationID); err != nil {
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
		return nil
	})
	if mon != nil {
		metrics.ActiveSession.Set(0)
		select {
		case <-mon.handle.Stop().Done():
		case <-ctx.Done():
		}
	}
	if err == nil && sid != "" {
		metrics.SessionsTerminatedTotal.WithLabelValues("logout").Inc()
		m.logger.Info("session cleared", zap.String("session_id", sid))
	}
	return err
}

// DetectSuspiciousActivity compares the session's stored fingerprint with a freshly collected one.
// A platform or address change logs a device_change_detected event and returns true. The session
// is left intact; what to do about it is the caller's decision.
func (m *Manager) DetectSuspiciousActivity(ctx context.Context, p userdomain.Principal) bool {
	s := m.Current(ctx)
	if s == nil {
		return false
	}
	fresh, err := m.devices.Collect(ctx)
	if err != nil {
		m.logger.Warn("device fingerprint collection failed during anomaly check", zap.Error(err))
		return false
	}
	mismatch := devicedomain.Compare(s.Fingerprint, fresh)
	if !mismatch.Any() {
		return false
	}

	var fields []string
	if mismatch.Platform {
		fields = append(fields, "platform")
	}
	if mismatch.Address {
		fields = append(fields, "address")
	}
	for _, f := range fields {
		metrics.SuspiciousActivityTotal.WithLabelValues(f).Inc()
	}
	principalID := p.ID
	if principalID == "" {
		principalID = s.Principal.ID
	}
	m.logger.Warn("device fingerprint changed",
		zap.String("session_id", s.ID),
		zap.String("principal_id", principalID),
		zap.Strings("changed", fields),
		zap.String("stored_hash", s.Fingerprint.Hash()),
		zap.String("current_hash", fresh.Hash()),
	)
	m.logEvent(ctx, EventDeviceChange, map[string]any{
		"session_id":   s.ID,
		"principal_id": principalID,
		"changed":      fields,
		"stored":       s.Fingerprint.Map(),
		"current":      fresh.Map(),
	})
	return true
}

// ApplyPrincipalUpdate pushes an administrator's role or grant change into the live session.
// Expiry is shortened if the new role allows less time; it is never lengthened. A deactivated
// principal loses the session.
func (m *Manager) ApplyPrincipalUpdate(ctx context.Context, p userdomain.Principal) (*domain.Session, error) {
	var (
		s   *domain.Session
		mon *monitor
	)
	err := m.withLock(func() error {
		cur, err := m.lookupLocked(ctx)
		if err != nil {
			return err
		}
		if cur == nil {
			return ErrNoSession
		}
		if cur.Principal.ID != p.ID {
			return ErrPrincipalMismatch
		}
		if !p.Active {
			if err := m.store.Delete(ctx, m.installationID); err != nil {
				return fmt.Errorf("%w: %w", ErrStorage, err)
			}
			m.terminated[cur.ID] = struct{}{}
			if m.monitor != nil && m.monitor.sessionID == cur.ID {
				mon = m.monitor
				m.monitor = nil
			}
			m.logEvent(ctx, EventPrincipalRevoked, map[string]any{"session_id": cur.ID, "principal_id": p.ID})
			return ErrInactivePrincipal
		}
		cur.Principal.Role = p.Role
		cur.Principal.Permissions = append([]string(nil), p.Permissions...)
		if limit := m.clock.Now().Add(m.timeouts.For(p.Role)); limit.Before(cur.ExpiresAt) {
			cur.ExpiresAt = limit
		}
		if err := m.store.Put(ctx, m.installationID, cur); err != nil {
			return fmt.Errorf("%w: %w", ErrStorage, err)
		}
		m.trackExpiryLocked(cur)
		s = cur
		return nil
	})
	if mon != nil {
		metrics.ActiveSession.Set(0)
		metrics.SessionsTerminatedTotal.WithLabelValues("deactivated").Inc()
		<-mon.handle.Stop().Done()
	}
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// StartMonitoring resumes monitoring of a session persisted by an earlier process.
// It reports whether a valid session was found.
func (m *Manager) StartMonitoring(ctx context.Context) (bool, error) {
	found := false
	err := m.withLock(func() error {
		s, err := m.lookupLocked(ctx)
		if err != nil || s == nil {
			return err
		}
		found = true
		if m.monitor != nil && m.monitor.sessionID == s.ID {
			return nil
		}
		if m.monitor != nil {
			m.monitor.handle.Stop()
			m.monitor = nil
		}
		return m.startMonitorLocked(s)
	})
	return found, err
}

// Monitoring reports whether background monitoring is running.
func (m *Manager) Monitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.monitor != nil
}

// Close stops monitoring without touching the stored session and waits for in-flight jobs.
func (m *Manager) Close() error {
	m.mu.Lock()
	mon := m.monitor
	m.monitor = nil
	m.closed = true
	m.mu.Unlock()
	if mon != nil {
		<-mon.handle.Stop().Done()
	}
	return nil
}

// withLock runs fn under the manager lock, then delivers any terminations it raised.
func (m *Manager) withLock(fn func() error) error {
	m.mu.Lock()
	err := fn()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, t := range pending {
		if m.onTerminate != nil {
			m.onTerminate(t)
		}
	}
	return err
}

func (m *Manager) lookupLocked(ctx context.Context) (*domain.Session, error) {
	s, err := m.store.Get(ctx, m.installationID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if s == nil {
		clear(m.terminated)
		m.vanishedLocked(ctx)
		return nil, nil
	}
	if _, gone := m.terminated[s.ID]; gone {
		if err := m.store.Delete(ctx, m.installationID); err != nil {
			m.logger.Warn("removing terminated session failed", zap.String("session_id", s.ID), zap.Error(err))
		}
		return nil, nil
	}
	clear(m.terminated)
	m.trackExpiryLocked(s)
	now := m.clock.Now()
	switch {
	case !s.ValidAt(now):
		m.terminateLocked(ctx, s.ID, s.Principal.ID, domain.ReasonExpired)
		return nil, nil
	case s.IdleFor(now) > m.inactivity:
		m.terminateLocked(ctx, s.ID, s.Principal.ID, domain.ReasonInactive)
		return nil, nil
	}
	return s, nil
}

// trackExpiryLocked copies s's expiry onto the monitor watching it.
func (m *Manager) trackExpiryLocked(s *domain.Session) {
	if m.monitor != nil && m.monitor.sessionID == s.ID {
		m.monitor.expiresAt = s.ExpiresAt
	}
}

// vanishedLocked handles a monitored session missing from the store. Past its expiry it was
// expired by the store and is terminated like any other expired session; before that it was
// removed by another process (logout) and monitoring just stops.
func (m *Manager) vanishedLocked(ctx context.Context) {
	mon := m.monitor
	if mon == nil {
		return
	}
	if m.clock.Now().After(mon.expiresAt) {
		m.terminateLocked(ctx, mon.sessionID, mon.principalID, domain.ReasonExpired)
		return
	}
	mon.handle.Stop()
	m.monitor = nil
	metrics.ActiveSession.Set(0)
	m.logger.Info("session removed outside this process", zap.String("session_id", mon.sessionID))
}

func (m *Manager) updateActivityLocked(ctx context.Context) error {
	s, err := m.lookupLocked(ctx)
	if err != nil || s == nil {
		return err
	}
	now := m.clock.Now()
	if !now.After(s.LastActivity) {
		return nil
	}
	s.LastActivity = now
	if err := m.store.Put(ctx, m.installationID, s); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// terminateLocked removes the session, stops its monitor without waiting (it may be the caller)
// and queues exactly one notification per session id.
func (m *Manager) terminateLocked(ctx context.Context, sessionID, principalID string, reason domain.Reason) {
	if _, done := m.terminated[sessionID]; done {
		return
	}
	m.terminated[sessionID] = struct{}{}
	if err := m.store.Delete(ctx, m.installationID); err != nil {
		m.logger.Warn("removing terminated session failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	if m.monitor != nil && m.monitor.sessionID == sessionID {
		m.monitor.handle.Stop()
		m.monitor = nil
		metrics.ActiveSession.Set(0)
	}
	m.persistFailures = 0

	at := m.clock.Now()
	metrics.SessionsTerminatedTotal.WithLabelValues(string(reason)).Inc()
	m.logger.Info("session terminated",
		zap.String("session_id", sessionID),
		zap.String("principal_id", principalID),
		zap.String("reason", string(reason)),
	)
	m.logEvent(ctx, eventForReason(reason), map[string]any{
		"session_id":   sessionID,
		"principal_id": principalID,
		"reason":       string(reason),
	})
	m.pending = append(m.pending, domain.Termination{
		Reason:      reason,
		SessionID:   sessionID,
		PrincipalID: principalID,
		At:          at,
	})
}

func (m *Manager) startMonitorLocked(s *domain.Session) error {
	mon := &monitor{sessionID: s.ID, principalID: s.Principal.ID, expiresAt: s.ExpiresAt}
	handle, err := m.scheduler.Start(
		Job{Name: "heartbeat", Interval: m.heartbeatInterval, Run: func() { m.heartbeat(mon) }},
		Job{Name: "sweep", Interval: m.sweepInterval, Run: func() { m.sweep(mon) }},
	)
	if err != nil {
		return err
	}
	mon.handle = handle
	m.monitor = mon
	m.persistFailures = 0
	metrics.ActiveSession.Set(1)
	return nil
}

func (m *Manager) heartbeat(mon *monitor) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	_ = m.withLock(func() error {
		if m.monitor != mon {
			return nil
		}
		err := m.updateActivityLocked(ctx)
		if err == nil {
			m.persistFailures = 0
			return nil
		}
		m.persistFailures++
		m.logger.Warn("session heartbeat failed",
			zap.String("session_id", mon.sessionID),
			zap.Int("consecutive_failures", m.persistFailures),
			zap.Error(err),
		)
		if m.persistFailures >= m.maxPersistFailures {
			m.terminateLocked(ctx, mon.sessionID, mon.principalID, domain.ReasonPersistFailed)
		}
		return nil
	})
}

func (m *Manager) sweep(mon *monitor) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	_ = m.withLock(func() error {
		if m.monitor != mon {
			return nil
		}
		s, err := m.store.Get(ctx, m.installationID)
		if err != nil {
			m.logger.Warn("session sweep could not read the store", zap.String("session_id", mon.sessionID), zap.Error(err))
			return nil
		}
		if s == nil {
			clear(m.terminated)
			m.vanishedLocked(ctx)
			return nil
		}
		if s.ID != mon.sessionID {
			// Replaced outside this manager.
			mon.handle.Stop()
			m.monitor = nil
			metrics.ActiveSession.Set(0)
			return nil
		}
		m.trackExpiryLocked(s)
		now := m.clock.Now()
		switch {
		case !s.ValidAt(now):
			m.terminateLocked(ctx, s.ID, s.Principal.ID, domain.ReasonExpired)
		case s.IdleFor(now) > m.inactivity:
			m.terminateLocked(ctx, s.ID, s.Principal.ID, domain.ReasonInactive)
		}
		return nil
	})
}

func (m *Manager) logEvent(ctx context.Context, name string, details map[string]any) {
	if m.events == nil {
		return
	}
	m.events.LogSecurityEvent(context.WithoutCancel(ctx), name, details)
}

func eventForReason(r domain.Reason) string {
	switch r {
	case domain.ReasonInactive:
		return EventSessionInactive
	case domain.ReasonPersistFailed:
		return EventPersistFailed
	default:
		return EventSessionTimeout
	}
}
