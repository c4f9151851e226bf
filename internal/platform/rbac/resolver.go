package rbac

import (
	userdomain "repairdesk/backend/internal/user/domain"
)

// Checker answers permission questions. Resolver is the implementation; the interface lets
// wrappers be observed in tests.
type Checker interface {
	HasPermission(role userdomain.Role, perm Permission, grants []string) bool
	HasAnyPermission(role userdomain.Role, perms []Permission, grants []string) bool
	HasAllPermissions(role userdomain.Role, perms []Permission, grants []string) bool
}

// Resolver evaluates permissions against a static role table plus explicit grants.
type Resolver struct {
	table map[userdomain.Role]map[Permission]struct{}
}

// NewResolver builds a Resolver from table. Entries for the owner role are ignored.
func NewResolver(table RoleTable) *Resolver {
	r := &Resolver{table: make(map[userdomain.Role]map[Permission]struct{}, len(table))}
	for role, perms := range table {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		r.table[role] = set
	}
	return r
}

// Default is the resolver over DefaultRoleTable.
var Default = NewResolver(DefaultRoleTable())

// HasPermission reports whether role holds perm through the role table or an explicit grant.
// The owner role holds every permission, including ones no table lists. Roles outside the
// closed set hold nothing.
func (r *Resolver) HasPermission(role userdomain.Role, perm Permission, grants []string) bool {
	if role.IsSuperuser() {
		return true
	}
	if !role.Valid() {
		return false
	}
	if _, ok := r.table[role][perm]; ok {
		return true
	}
	for _, g := range grants {
		if Permission(g) == perm {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether role holds at least one of perms. It stops at the first hit.
// An empty list is false.
func (r *Resolver) HasAnyPermission(role userdomain.Role, perms []Permission, grants []string) bool {
	for _, p := range perms {
		if r.HasPermission(role, p, grants) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether role holds every one of perms. It stops at the first miss.
// An empty list is vacuously true.
func (r *Resolver) HasAllPermissions(role userdomain.Role, perms []Permission, grants []string) bool {
	for _, p := range perms {
		if !r.HasPermission(role, p, grants) {
			return false
		}
	}
	return true
}

// HasPermission checks perm with the Default resolver.
func HasPermission(role userdomain.Role, perm Permission, grants []string) bool {
	return Default.HasPermission(role, perm, grants)
}

// HasAnyPermission checks perms with the Default resolver.
func HasAnyPermission(role userdomain.Role, perms []Permission, grants []string) bool {
	return Default.HasAnyPermission(role, perms, grants)
}

// HasAllPermissions checks perms with the Default resolver.
func HasAllPermissions(role userdomain.Role, perms []Permission, grants []string) bool {
	return Default.HasAllPermissions(role, perms, grants)
}

// Requirement is what a screen or action demands. Only one kind is evaluated:
// Permission if set, otherwise AnyOf if non-empty, otherwise AllOf. Kinds are never combined.
type Requirement struct {
	Permission Permission
	AnyOf      []Permission
	AllOf      []Permission
}

// IsZero reports whether the requirement demands nothing.
func (q Requirement) IsZero() bool {
	return q.Permission == "" && len(q.AnyOf) == 0 && len(q.AllOf) == 0
}

// Evaluate applies the requirement through c. A zero requirement allows.
func (q Requirement) Evaluate(c Checker, role userdomain.Role, grants []string) bool {
	switch {
	case q.Permission != "":
		return c.HasPermission(role, q.Permission, grants)
	case len(q.AnyOf) > 0:
		return c.HasAnyPermission(role, q.AnyOf, grants)
	case len(q.AllOf) > 0:
		return c.HasAllPermissions(role, q.AllOf, grants)
	}
	return true
}
