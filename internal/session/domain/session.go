package domain

import (
	"errors"
	"fmt"
	"time"

	devicedomain "repairdesk/backend/internal/device/domain"
	userdomain "repairdesk/backend/internal/user/domain"
)

// Session is the single authenticated device binding held by an installation.
type Session struct {
	ID             string                   `json:"id"`
	InstallationID string                   `json:"installation_id"`
	Principal      userdomain.Principal     `json:"principal"`
	AccessToken    string                   `json:"access_token"`
	RefreshToken   string                   `json:"refresh_token"`
	RefreshJTI     string                   `json:"refresh_jti"`
	ExpiresAt      time.Time                `json:"expires_at"`
	LastActivity   time.Time                `json:"last_activity"`
	Fingerprint    devicedomain.Fingerprint `json:"fingerprint"`
	CreatedAt      time.Time                `json:"created_at"`
}

// ValidAt reports whether the session has not passed its absolute expiry at now.
// A session is still valid at exactly ExpiresAt.
func (s *Session) ValidAt(now time.Time) bool {
	return s != nil && !now.After(s.ExpiresAt)
}

// IdleFor returns how long the session has been without activity at now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	if s == nil || now.Before(s.LastActivity) {
		return 0
	}
	return now.Sub(s.LastActivity)
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Principal = s.Principal.Clone()
	return &out
}

// Tokens is one issued access/refresh pair.
type Tokens struct {
	Access     string
	Refresh    string
	RefreshJTI string
}

// Timeouts maps each role to its absolute session lifetime.
type Timeouts map[userdomain.Role]time.Duration

// ErrTimeoutOrder is returned when role timeouts do not shrink as privilege grows.
var ErrTimeoutOrder = errors.New("session timeouts must satisfy owner < admin < technician < customer")

// DefaultTimeouts returns the standard lifetimes: the more privileged the role, the shorter the session.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		userdomain.RoleCustomer:   24 * time.Hour,
		userdomain.RoleTechnician: 12 * time.Hour,
		userdomain.RoleAdmin:      8 * time.Hour,
		userdomain.RoleOwner:      4 * time.Hour,
	}
}

// For returns the lifetime for role. Unknown roles get the shortest configured lifetime.
func (t Timeouts) For(role userdomain.Role) time.Duration {
	if d, ok := t[role]; ok && d > 0 {
		return d
	}
	var shortest time.Duration
	for _, d := range t {
		if d > 0 && (shortest == 0 || d < shortest) {
			shortest = d
		}
	}
	return shortest
}

// Validate checks every role has a positive lifetime and the privilege ordering holds.
func (t Timeouts) Validate() error {
	roles := userdomain.Roles()
	for _, r := range roles {
		if t[r] <= 0 {
			return fmt.Errorf("session timeout for %s must be positive", r)
		}
	}
	// Roles() is ordered least privileged first.
	for i := 1; i < len(roles); i++ {
		if t[roles[i]] >= t[roles[i-1]] {
			return ErrTimeoutOrder
		}
	}
	return nil
}

// Reason says why a session was terminated by the core rather than by logout.
type Reason string

const (
	ReasonExpired       Reason = "expired"
	ReasonInactive      Reason = "inactive"
	ReasonPersistFailed Reason = "persist_failed"
)

// Termination is raised once per session when monitoring ends it.
type Termination struct {
	Reason      Reason
	SessionID   string
	PrincipalID string
	At          time.Time
}
