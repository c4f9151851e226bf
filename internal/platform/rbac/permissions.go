// Package rbac resolves role and permission based authorization decisions.
// Every function here is pure: no I/O, no caching, safe to call on every request.
package rbac

import (
	userdomain "repairdesk/backend/internal/user/domain"
)

// Permission names one capability in the shop.
type Permission string

const (
	JobsView   Permission = "jobs:view"
	JobsCreate Permission = "jobs:create"
	JobsEdit   Permission = "jobs:edit"
	JobsDelete Permission = "jobs:delete"
	JobsAssign Permission = "jobs:assign"

	CustomersView Permission = "customers:view"
	CustomersEdit Permission = "customers:edit"

	TechniciansView   Permission = "technicians:view"
	TechniciansManage Permission = "technicians:manage"

	BranchesView   Permission = "branches:view"
	BranchesManage Permission = "branches:manage"

	AnalyticsView Permission = "analytics:view"

	InventoryView   Permission = "inventory:view"
	InventoryManage Permission = "inventory:manage"

	ReportsView   Permission = "reports:view"
	ReportsExport Permission = "reports:export"

	AdminPanel     Permission = "admin:panel"
	UsersManage    Permission = "users:manage"
	SettingsManage Permission = "settings:manage"
)

// RoleTable is the static allow-list per role. The owner role is deliberately absent:
// it is a superuser and never consults the table.
type RoleTable map[userdomain.Role][]Permission

// DefaultRoleTable returns the shop's standard role permissions.
func DefaultRoleTable() RoleTable {
	return RoleTable{
		userdomain.RoleCustomer: {
			JobsView, JobsCreate,
		},
		userdomain.RoleTechnician: {
			JobsView, JobsEdit,
			CustomersView,
			InventoryView,
		},
		userdomain.RoleAdmin: {
			JobsView, JobsCreate, JobsEdit, JobsDelete, JobsAssign,
			CustomersView, CustomersEdit,
			TechniciansView, TechniciansManage,
			BranchesView,
			AnalyticsView,
			InventoryView, InventoryManage,
			ReportsView, ReportsExport,
			AdminPanel, UsersManage,
		},
	}
}
