package dashboard

import (
	"slices"
	"strings"

	"sesamum.org/internal/auth"
)

// NavItem is a sidebar entry.
type NavItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Path  string `json:"path"`
	Icon  string `json:"icon"`

	roles []auth.Role
}

var navigation = []NavItem{
	{ID: "dashboard", Label: "Dashboard", Path: "/", Icon: "layout-dashboard", roles: []auth.Role{auth.RoleAdmin, auth.RoleCompany, auth.RoleControl}},
	{ID: "projects", Label: "Projetos", Path: "/projects", Icon: "briefcase", roles: []auth.Role{auth.RoleAdmin, auth.RoleCompany, auth.RoleControl}},
	{ID: "events", Label: "Eventos", Path: "/events", Icon: "calendar", roles: []auth.Role{auth.RoleAdmin, auth.RoleCompany, auth.RoleControl}},
	{ID: "companies", Label: "Empresas", Path: "/companies", Icon: "building-2", roles: []auth.Role{auth.RoleAdmin, auth.RoleControl}},
	{ID: "staffs", Label: "Staffs", Path: "/staffs", Icon: "users", roles: []auth.Role{auth.RoleCompany}},
	{ID: "users", Label: "Usuários", Path: "/users", Icon: "users", roles: []auth.Role{auth.RoleAdmin}},
	{ID: "checkin", Label: "Check-in", Path: "/checkin", Icon: "scan-line", roles: []auth.Role{auth.RoleAdmin, auth.RoleControl}},
}

// Navigation lists the entries visible to role. The dev role sees every
// entry while keeping admin permissions.
func Navigation(role auth.Role) []NavItem {
	out := make([]NavItem, 0, len(navigation))
	for _, item := range navigation {
		if role == auth.RoleDev || item.allows(role) {
			out = append(out, item)
		}
	}
	return out
}

// RouteAllowed reports whether role may open path. Detail pages such as
// /events/12 inherit the permissions of their collection.
func RouteAllowed(role auth.Role, path string) bool {
	if role == auth.RoleDev {
		return true
	}
	for _, item := range navigation {
		if item.Path == path || (item.Path != "/" && strings.HasPrefix(path, item.Path+"/")) {
			return item.allows(role)
		}
	}
	return false
}

func (n NavItem) allows(role auth.Role) bool {
	return slices.Contains(n.roles, role)
}
