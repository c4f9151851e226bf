package rbac

import (
	"context"
	"errors"

	sessiondomain "repairdesk/backend/internal/session/domain"
	userdomain "repairdesk/backend/internal/user/domain"
)

var (
	// ErrUnauthenticated is returned when there is no valid session.
	ErrUnauthenticated = errors.New("rbac: authentication required")
	// ErrPermissionDenied is returned when the session's principal lacks the requirement.
	ErrPermissionDenied = errors.New("rbac: permission denied")
)

// SessionSource returns the current valid session, nil when signed out, or a storage error.
type SessionSource interface {
	Lookup(ctx context.Context) (*sessiondomain.Session, error)
}

// Require ensures there is a valid session whose principal meets req, evaluated with checker.
// Returns the principal on success; ErrUnauthenticated, ErrPermissionDenied or the source's
// storage error on failure.
func Require(ctx context.Context, src SessionSource, checker Checker, req Requirement) (userdomain.Principal, error) {
	s, err := src.Lookup(ctx)
	if err != nil {
		return userdomain.Principal{}, err
	}
	if s == nil || !s.Principal.Active {
		return userdomain.Principal{}, ErrUnauthenticated
	}
	if !req.Evaluate(checker, s.Principal.Role, s.Principal.Permissions) {
		return userdomain.Principal{}, ErrPermissionDenied
	}
	return s.Principal.Clone(), nil
}

// RequirePermission is Require for a single permission with the Default resolver.
func RequirePermission(ctx context.Context, src SessionSource, perm Permission) (userdomain.Principal, error) {
	return Require(ctx, src, Default, Requirement{Permission: perm})
}

// RequireRoute ensures the current principal may open route.
func RequireRoute(ctx context.Context, src SessionSource, guard *RouteGuard, route string) (userdomain.Principal, error) {
	s, err := src.Lookup(ctx)
	if err != nil {
		return userdomain.Principal{}, err
	}
	if s == nil || !s.Principal.Active {
		return userdomain.Principal{}, ErrUnauthenticated
	}
	if !guard.CanAccessRoute(s.Principal.Role, route, s.Principal.Permissions) {
		return userdomain.Principal{}, ErrPermissionDenied
	}
	return s.Principal.Clone(), nil
}
