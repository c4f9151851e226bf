package rbac

import (
	"strings"

	userdomain "repairdesk/backend/internal/user/domain"
)

// Route is the access rule for one route prefix. When Roles is set the principal's role must be
// listed (the owner always passes); the Requirement is then evaluated as usual.
type Route struct {
	Roles       []userdomain.Role
	Requirement Requirement
}

// RouteTable maps route prefixes such as "/jobs" to their rules.
type RouteTable map[string]Route

var allRoles = []userdomain.Role{
	userdomain.RoleCustomer, userdomain.RoleTechnician, userdomain.RoleAdmin, userdomain.RoleOwner,
}

// DefaultRoutes returns the shop's screen table.
func DefaultRoutes() RouteTable {
	return RouteTable{
		"/dashboard":      {Roles: allRoles},
		"/profile":        {Roles: allRoles},
		"/jobs":           {Requirement: Requirement{Permission: JobsView}},
		"/jobs/new":       {Requirement: Requirement{Permission: JobsCreate}},
		"/customers":      {Requirement: Requirement{Permission: CustomersView}},
		"/technicians":    {Requirement: Requirement{Permission: TechniciansView}},
		"/branches":       {Requirement: Requirement{Permission: BranchesView}},
		"/analytics":      {Requirement: Requirement{AnyOf: []Permission{AnalyticsView, ReportsView}}},
		"/inventory":      {Requirement: Requirement{Permission: InventoryView}},
		"/reports":        {Requirement: Requirement{Permission: ReportsView}},
		"/reports/export": {Requirement: Requirement{AllOf: []Permission{ReportsView, ReportsExport}}},
		"/admin":          {Roles: []userdomain.Role{userdomain.RoleAdmin}, Requirement: Requirement{Permission: AdminPanel}},
		"/admin/users":    {Roles: []userdomain.Role{userdomain.RoleAdmin}, Requirement: Requirement{AllOf: []Permission{AdminPanel, UsersManage}}},
		"/settings":       {Requirement: Requirement{Permission: SettingsManage}},
	}
}

// Lookup finds the rule for route: an exact match, or else the longest registered prefix that
// ends on a path segment boundary ("/jobs" covers "/jobs/42" but not "/jobsite").
func (t RouteTable) Lookup(route string) (Route, bool) {
	route = normalizeRoute(route)
	for {
		if r, ok := t[route]; ok {
			return r, true
		}
		i := strings.LastIndex(route, "/")
		if i <= 0 {
			return Route{}, false
		}
		route = route[:i]
	}
}

func normalizeRoute(route string) string {
	route = strings.TrimSpace(route)
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	if len(route) > 1 {
		route = strings.TrimRight(route, "/")
	}
	return route
}

// RouteGuard decides route access with a Checker and a RouteTable.
type RouteGuard struct {
	checker Checker
	routes  RouteTable
}

// NewRouteGuard returns a guard over routes using checker.
func NewRouteGuard(checker Checker, routes RouteTable) *RouteGuard {
	return &RouteGuard{checker: checker, routes: routes}
}

// CanAccessRoute reports whether role may open route. Unregistered routes are denied.
func (g *RouteGuard) CanAccessRoute(role userdomain.Role, route string, grants []string) bool {
	rule, ok := g.routes.Lookup(route)
	if !ok {
		return false
	}
	if len(rule.Roles) > 0 && !role.IsSuperuser() && !containsRole(rule.Roles, role) {
		return false
	}
	return rule.Requirement.Evaluate(g.checker, role, grants)
}

var defaultGuard = NewRouteGuard(Default, DefaultRoutes())

// CanAccessRoute checks route against the default table and resolver.
func CanAccessRoute(role userdomain.Role, route string, grants []string) bool {
	return defaultGuard.CanAccessRoute(role, route, grants)
}

func containsRole(roles []userdomain.Role, role userdomain.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
