package rbac

import (
	"testing"

	userdomain "repairdesk/backend/internal/user/domain"
)

func TestCanAccessRoute(t *testing.T) {
	tests := []struct {
		role   userdomain.Role
		route  string
		grants []string
		want   bool
	}{
		{userdomain.RoleCustomer, "/dashboard", nil, true},
		{userdomain.RoleCustomer, "/jobs", nil, true},
		{userdomain.RoleCustomer, "/jobs/42", nil, true},
		{userdomain.RoleCustomer, "/jobs/new", nil, true},
		{userdomain.RoleCustomer, "/inventory", nil, false},
		{userdomain.RoleTechnician, "/jobs/new", nil, false},
		{userdomain.RoleTechnician, "/inventory?tab=parts", nil, true},
		{userdomain.RoleTechnician, "/analytics", nil, false},
		{userdomain.RoleTechnician, "/analytics", []string{"reports:view"}, true},
		{userdomain.RoleAdmin, "/admin", nil, true},
		{userdomain.RoleAdmin, "/admin/users/", nil, true},
		{userdomain.RoleAdmin, "/settings", nil, false},
		{userdomain.RoleTechnician, "/admin", []string{"admin:panel"}, false},
		{userdomain.RoleOwner, "/admin/users", nil, true},
		{userdomain.RoleOwner, "/settings", nil, true},
		{userdomain.RoleAdmin, "/reports/export", nil, true},
		{userdomain.RoleTechnician, "/reports/export", []string{"reports:export"}, false},
	}
	for _, tt := range tests {
		if got := CanAccessRoute(tt.role, tt.route, tt.grants); got != tt.want {
			t.Errorf("CanAccessRoute(%q, %q, %v) = %v, want %v", tt.role, tt.route, tt.grants, got, tt.want)
		}
	}
}

func TestCanAccessRoute_UnknownRouteDenied(t *testing.T) {
	for _, route := range []string{"/", "/unknown", "/jobsite", ""} {
		for _, role := range userdomain.Roles() {
			if CanAccessRoute(role, route, nil) {
				t.Errorf("CanAccessRoute(%q, %q) = true, want false", role, route)
			}
		}
	}
}

func TestRouteTable_Lookup(t *testing.T) {
	routes := DefaultRoutes()
	if _, ok := routes.Lookup("jobs/7/notes"); !ok {
		t.Error("Lookup(jobs/7/notes) should fall back to /jobs")
	}
	r, ok := routes.Lookup("/admin/users/9")
	if !ok || len(r.Requirement.AllOf) != 2 {
		t.Errorf("Lookup(/admin/users/9) = %+v, %v; want the /admin/users rule", r, ok)
	}
}
