package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repairdesk/backend/internal/device"
	devicedomain "repairdesk/backend/internal/device/domain"
	"repairdesk/backend/internal/loginattempt"
	logindomain "repairdesk/backend/internal/loginattempt/domain"
	loginrepo "repairdesk/backend/internal/loginattempt/repository"
	"repairdesk/backend/internal/platform/clock"
	"repairdesk/backend/internal/platform/rbac"
	"repairdesk/backend/internal/session"
	sessiondomain "repairdesk/backend/internal/session/domain"
	sessionrepo "repairdesk/backend/internal/session/repository"
	userdomain "repairdesk/backend/internal/user/domain"
)

var (
	webDevice     = devicedomain.Fingerprint{Platform: "web", UserAgent: "repairdesk/test", Address: "192.168.1.10"}
	androidDevice = devicedomain.Fingerprint{Platform: "android", UserAgent: "repairdesk/test", Address: "192.168.1.10"}
)

// fakeVerifier accepts one password per identifier.
type fakeVerifier struct {
	mu       sync.Mutex
	accounts map[string]userdomain.Principal
	password string
	calls    int
	hook     func()
}

func (v *fakeVerifier) Verify(_ context.Context, identifier, secret string) (*userdomain.Principal, error) {
	v.mu.Lock()
	v.calls++
	hook := v.hook
	v.mu.Unlock()
	if hook != nil {
		hook()
	}
	p, ok := v.accounts[identifier]
	if !ok || secret != v.password {
		return nil, ErrInvalidCredentials
	}
	return &p, nil
}

func (v *fakeVerifier) callCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

type attemptCall struct {
	identifier string
	success    bool
}

// recordingAttempts wraps the real tracker and records RecordAttempt calls.
type recordingAttempts struct {
	*loginattempt.Tracker
	mu    sync.Mutex
	calls []attemptCall
}

func (r *recordingAttempts) RecordAttempt(ctx context.Context, id string, success bool) (*logindomain.Record, error) {
	r.mu.Lock()
	r.calls = append(r.calls, attemptCall{id, success})
	r.mu.Unlock()
	return r.Tracker.RecordAttempt(ctx, id, success)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
	detail []map[string]any
}

func (e *eventLog) LogSecurityEvent(_ context.Context, name string, details map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, name)
	e.detail = append(e.detail, details)
}

func (e *eventLog) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

func (e *eventLog) count(name string) int {
	n := 0
	for _, got := range e.names() {
		if got == name {
			n++
		}
	}
	return n
}

type noopHandle struct{}

func (noopHandle) Stop() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

type noopScheduler struct{}

func (noopScheduler) Start(...session.Job) (session.Handle, error) { return noopHandle{}, nil }

// putFailStore fails every write.
type putFailStore struct {
	sessionrepo.Store
	err error
}

func (s *putFailStore) Put(context.Context, string, *sessiondomain.Session) error { return s.err }

type authFixture struct {
	clock    *clock.Manual
	devices  *device.Fixed
	verifier *fakeVerifier
	attempts *recordingAttempts
	store    *loginrepo.MemoryStore
	events   *eventLog
	manager  *session.Manager
	svc      *AuthService
}

func newAuthFixture(t *testing.T, store sessionrepo.Store, opts ...Option) *authFixture {
	t.Helper()
	f := &authFixture{
		clock:   clock.NewManual(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)),
		devices: device.NewFixed(webDevice),
		verifier: &fakeVerifier{
			password: "s3cret",
			accounts: map[string]userdomain.Principal{},
		},
		store:  loginrepo.NewMemoryStore(),
		events: &eventLog{},
	}
	for _, role := range userdomain.Roles() {
		id := DemoIdentifier(role)
		f.verifier.accounts[id] = userdomain.Principal{ID: "u-" + string(role), Email: id, Role: role, Active: true}
	}
	f.verifier.accounts["alice@example.com"] = userdomain.Principal{ID: "u-alice", Email: "alice@example.com", Role: userdomain.RoleTechnician, Active: true}

	f.attempts = &recordingAttempts{Tracker: loginattempt.NewTracker(f.store, f.clock, loginattempt.WithEventLogger(f.events))}
	if store == nil {
		store = sessionrepo.NewMemoryStore()
	}
	f.manager = session.NewManager(store, f.clock, f.devices, f.events, session.WithScheduler(noopScheduler{}))
	t.Cleanup(func() { _ = f.manager.Close() })
	f.svc = NewAuthService(f.verifier, f.attempts, f.manager, f.devices, f.events, opts...)
	return f
}

func (f *authFixture) recorded() []attemptCall {
	f.attempts.mu.Lock()
	defer f.attempts.mu.Unlock()
	return append([]attemptCall(nil), f.attempts.calls...)
}

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	s, err := f.svc.Login(ctx, " Alice@Example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "u-alice", s.Principal.ID)
	assert.Equal(t, f.clock.Now().Add(12*time.Hour), s.ExpiresAt)
	assert.Equal(t, webDevice, s.Fingerprint)

	cur := f.svc.CurrentSession(ctx)
	require.NotNil(t, cur)
	assert.Equal(t, s.ID, cur.ID)
	assert.Equal(t, []attemptCall{{"alice@example.com", true}}, f.recorded())
	assert.Equal(t, 1, f.events.count(EventLoginSucceeded))
}

func TestLogin_FourFailuresThenSuccessDoesNotLock(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.svc.Login(ctx, "alice@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := f.svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)

	locked, err := f.svc.IsAccountLocked(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, locked)

	want := []attemptCall{
		{"alice@example.com", false},
		{"alice@example.com", false},
		{"alice@example.com", false},
		{"alice@example.com", false},
		{"alice@example.com", true},
	}
	assert.Equal(t, want, f.recorded())
	assert.Equal(t, 0, f.store.Len())
	assert.Equal(t, 4, f.events.count(EventLoginFailed))
}

func TestLogin_LockoutBlocksWithoutVerifying(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < loginattempt.DefaultThreshold; i++ {
		_, err := f.svc.Login(ctx, "alice@example.com", "wrong")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	assert.Equal(t, 1, f.events.count(loginattempt.EventAccountLocked))
	callsBefore := f.verifier.callCount()

	f.clock.Advance(5 * time.Minute)
	_, err := f.svc.Login(ctx, "alice@example.com", "s3cret")
	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	assert.ErrorIs(t, err, ErrAccountLocked)
	assert.Equal(t, 10*time.Minute, locked.Remaining)
	assert.Equal(t, callsBefore, f.verifier.callCount(), "locked login must not reach the verifier")
	assert.Equal(t, 1, f.events.count(EventLoginBlocked))
	assert.Nil(t, f.svc.CurrentSession(ctx))

	remaining, err := f.svc.GetRemainingLockoutTime(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, remaining)

	f.clock.Advance(10 * time.Minute)
	_, err = f.svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
}

func TestLogin_FailureCountsEvenWhenCallerCancels(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f.verifier.hook = cancel

	_, err := f.svc.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	rec, err := f.store.Get(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Count)
}

func TestLogin_EmptyIdentifier(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, err := f.svc.Login(context.Background(), "   ", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Zero(t, f.verifier.callCount())
	assert.Empty(t, f.recorded())
}

type brokenAttempts struct{ Attempts }

func (brokenAttempts) RemainingLockout(context.Context, string) (time.Duration, error) {
	return 0, errors.New("redis down")
}

func TestLogin_LockoutCheckFailureFailsClosed(t *testing.T) {
	f := newAuthFixture(t, nil)
	svc := NewAuthService(f.verifier, brokenAttempts{f.attempts}, f.manager, f.devices, f.events)

	_, err := svc.Login(context.Background(), "alice@example.com", "s3cret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.Zero(t, f.verifier.callCount())
}

func TestLogin_SessionWriteFailureSurfaces(t *testing.T) {
	dbErr := errors.New("disk full")
	f := newAuthFixture(t, &putFailStore{Store: sessionrepo.NewMemoryStore(), err: dbErr})

	_, err := f.svc.Login(context.Background(), "alice@example.com", "s3cret")
	require.ErrorIs(t, err, session.ErrStorage)
	assert.ErrorIs(t, err, dbErr)
	assert.Nil(t, f.svc.CurrentSession(context.Background()))
	assert.Equal(t, 0, f.events.count(EventLoginSucceeded))
}

func TestQuickLogin(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.QuickLogin(ctx, userdomain.RoleAdmin)
	assert.ErrorIs(t, err, ErrDemoLoginDisabled)

	f = newAuthFixture(t, nil, WithDemoLogin(DemoLogin{Enabled: true, Password: "s3cret"}))
	for _, role := range userdomain.Roles() {
		s, err := f.svc.QuickLogin(ctx, role)
		require.NoError(t, err, role)
		assert.Equal(t, role, s.Principal.Role)
		assert.Equal(t, DemoIdentifier(role), s.Principal.Email)
	}
	_, err = f.svc.QuickLogin(ctx, userdomain.Role("janitor"))
	assert.ErrorIs(t, err, userdomain.ErrUnknownRole)
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	_, err := f.svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx))
	assert.Nil(t, f.svc.CurrentSession(ctx))
	assert.Equal(t, 1, f.events.count(EventLogout))

	require.NoError(t, f.svc.Logout(ctx))
	assert.Equal(t, 1, f.events.count(EventLogout))
}

func TestPermissionQueries(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	assert.False(t, f.svc.HasPermission(ctx, rbac.JobsView), "signed out")
	assert.False(t, f.svc.HasAllPermissions(ctx), "signed out")
	assert.False(t, f.svc.CanAccessRoute(ctx, "/dashboard"), "signed out")

	_, err := f.svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)

	assert.True(t, f.svc.HasPermission(ctx, rbac.JobsView))
	assert.False(t, f.svc.HasPermission(ctx, rbac.AdminPanel))
	assert.True(t, f.svc.HasAnyPermission(ctx, rbac.AdminPanel, rbac.InventoryView))
	assert.False(t, f.svc.HasAnyPermission(ctx))
	assert.True(t, f.svc.HasAllPermissions(ctx))
	assert.False(t, f.svc.HasAllPermissions(ctx, rbac.JobsView, rbac.ReportsView))
	assert.True(t, f.svc.CanAccessRoute(ctx, "/jobs/42"))
	assert.False(t, f.svc.CanAccessRoute(ctx, "/admin"))
	assert.False(t, f.svc.CanAccessRoute(ctx, "/no-such-screen"))

	grant := f.svc.CurrentSession(ctx).Principal
	grant.Permissions = []string{string(rbac.ReportsView)}
	_, err = f.manager.ApplyPrincipalUpdate(ctx, grant)
	require.NoError(t, err)
	assert.True(t, f.svc.HasAllPermissions(ctx, rbac.JobsView, rbac.ReportsView), "grant applies without re-login")
}

func TestPermissionQueries_Owner(t *testing.T) {
	f := newAuthFixture(t, nil, WithDemoLogin(DemoLogin{Enabled: true, Password: "s3cret"}))
	ctx := context.Background()
	_, err := f.svc.QuickLogin(ctx, userdomain.RoleOwner)
	require.NoError(t, err)

	assert.True(t, f.svc.HasPermission(ctx, rbac.Permission("anything:at-all")))
	assert.True(t, f.svc.HasAllPermissions(ctx, rbac.AdminPanel, rbac.SettingsManage))
	assert.True(t, f.svc.CanAccessRoute(ctx, "/admin/users"))
}

func TestRecordLoginAttempt(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	for i := 0; i < loginattempt.DefaultThreshold; i++ {
		require.NoError(t, f.svc.RecordLoginAttempt(ctx, "bob@example.com", false))
	}
	locked, err := f.svc.IsAccountLocked(ctx, "BOB@example.com")
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, f.svc.RecordLoginAttempt(ctx, "bob@example.com", true))
	locked, err = f.svc.IsAccountLocked(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestDetectSuspiciousActivity(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()
	assert.False(t, f.svc.DetectSuspiciousActivity(ctx), "signed out")

	_, err := f.svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.False(t, f.svc.DetectSuspiciousActivity(ctx))

	f.devices.Set(androidDevice)
	assert.True(t, f.svc.DetectSuspiciousActivity(ctx))
	assert.Equal(t, 1, f.events.count(session.EventDeviceChange))
	assert.NotNil(t, f.svc.CurrentSession(ctx), "detection does not end the session")
}

func TestEvaluateDeviceChange(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.EvaluateDeviceChange(ctx)
	assert.ErrorIs(t, err, session.ErrNoSession)

	_, err = f.svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)

	d, err := f.svc.EvaluateDeviceChange(ctx)
	require.NoError(t, err)
	assert.False(t, d.ReauthRequired)

	f.devices.Set(devicedomain.Fingerprint{Platform: "web", Address: "10.9.9.9"})
	d, err = f.svc.EvaluateDeviceChange(ctx)
	require.NoError(t, err)
	assert.False(t, d.ReauthRequired, "technician address change is allowed")

	f.devices.Set(androidDevice)
	d, err = f.svc.EvaluateDeviceChange(ctx)
	require.NoError(t, err)
	assert.True(t, d.ReauthRequired)
	assert.Equal(t, "platform_changed", d.Reason)
	assert.Equal(t, 1, f.events.count(EventReauthRequired))

	f.devices.Fail(errors.New("no interfaces"))
	_, err = f.svc.EvaluateDeviceChange(ctx)
	assert.ErrorIs(t, err, session.ErrDeviceInfo)
}

func TestLogSecurityEvent(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.svc.LogSecurityEvent(context.Background(), "custom_event", map[string]any{"k": "v"})
	assert.Equal(t, []string{"custom_event"}, f.events.names())

	svc := NewAuthService(f.verifier, f.attempts, f.manager, f.devices, nil)
	svc.LogSecurityEvent(context.Background(), "ignored", nil)
}
