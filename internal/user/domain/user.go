package domain

import (
	"errors"
	"strings"
	"time"
)

// Role is the closed set of roles a principal can hold.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTechnician Role = "technician"
	RoleAdmin      Role = "admin"
	RoleOwner      Role = "owner"
)

// ErrUnknownRole is returned by ParseRole for values outside the closed role set.
var ErrUnknownRole = errors.New("unknown role")

// Roles lists every role, least privileged first.
func Roles() []Role {
	return []Role{RoleCustomer, RoleTechnician, RoleAdmin, RoleOwner}
}

// ParseRole parses s (case-insensitive) into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleTechnician, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

// IsSuperuser reports whether r is granted every permission implicitly.
func (r Role) IsSuperuser() bool { return r == RoleOwner }

// Principal is the identity bound to a session.
type Principal struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions,omitempty"` // explicit grants on top of the role table
	Active      bool     `json:"active"`
}

// Clone returns a deep copy so callers cannot mutate a session's principal through shared slices.
func (p Principal) Clone() Principal {
	out := p
	if p.Permissions != nil {
		out.Permissions = append([]string(nil), p.Permissions...)
	}
	return out
}

// User is the directory record behind a principal.
type User struct {
	ID          string
	Email       string
	Name        string
	Role        Role
	Permissions []string
	Status      UserStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if !u.Role.Valid() {
		return ErrUnknownRole
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	return nil
}

// Principal returns the principal view of the user.
func (u *User) Principal() Principal {
	return Principal{
		ID:          u.ID,
		Email:       u.Email,
		Role:        u.Role,
		Permissions: append([]string(nil), u.Permissions...),
		Active:      u.Status == UserStatusActive,
	}
}
