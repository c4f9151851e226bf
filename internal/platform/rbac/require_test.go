package rbac

import (
	"context"
	"errors"
	"testing"

	sessiondomain "repairdesk/backend/internal/session/domain"
	userdomain "repairdesk/backend/internal/user/domain"
)

// stubSource implements SessionSource for tests.
type stubSource struct {
	session *sessiondomain.Session
	err     error
}

func (s stubSource) Lookup(context.Context) (*sessiondomain.Session, error) {
	return s.session, s.err
}

func sessionFor(role userdomain.Role, grants ...string) *sessiondomain.Session {
	return &sessiondomain.Session{
		ID:        "s1",
		Principal: userdomain.Principal{ID: "u1", Role: role, Permissions: grants, Active: true},
	}
}

func TestRequirePermission_Success(t *testing.T) {
	p, err := RequirePermission(context.Background(), stubSource{session: sessionFor(userdomain.RoleAdmin)}, AdminPanel)
	if err != nil {
		t.Fatalf("RequirePermission: %v", err)
	}
	if p.ID != "u1" {
		t.Errorf("principal id = %q, want %q", p.ID, "u1")
	}
}

func TestRequirePermission_Denied(t *testing.T) {
	_, err := RequirePermission(context.Background(), stubSource{session: sessionFor(userdomain.RoleCustomer)}, AdminPanel)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestRequirePermission_NoSession(t *testing.T) {
	_, err := RequirePermission(context.Background(), stubSource{}, JobsView)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
	inactive := sessionFor(userdomain.RoleOwner)
	inactive.Principal.Active = false
	_, err = RequirePermission(context.Background(), stubSource{session: inactive}, JobsView)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("inactive principal err = %v, want ErrUnauthenticated", err)
	}
}

func TestRequirePermission_StorageErrorIsDistinct(t *testing.T) {
	storeErr := errors.New("session store unavailable")
	_, err := RequirePermission(context.Background(), stubSource{err: storeErr}, JobsView)
	if !errors.Is(err, storeErr) {
		t.Errorf("err = %v, want storage error", err)
	}
	if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrPermissionDenied) {
		t.Error("storage failure must not look like an auth decision")
	}
}

func TestRequireRoute(t *testing.T) {
	guard := NewRouteGuard(Default, DefaultRoutes())
	src := stubSource{session: sessionFor(userdomain.RoleTechnician, "settings:manage")}
	if _, err := RequireRoute(context.Background(), src, guard, "/settings"); err != nil {
		t.Errorf("RequireRoute(/settings) with grant: %v", err)
	}
	if _, err := RequireRoute(context.Background(), src, guard, "/admin"); !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("RequireRoute(/admin) err = %v, want ErrPermissionDenied", err)
	}
}
