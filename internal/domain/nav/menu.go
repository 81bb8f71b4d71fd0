package nav

// Package nav computes the role-gated navigation menu served to the SPA.

import (
	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
)

// Item is one entry of the static menu definition.
type Item struct {
	Label   string            `json:"label"`
	Target  string            `json:"target"`
	Icon    string            `json:"icon,omitempty"`
	Roles   []domainauth.Role `json:"-"`
	Submenu []Item            `json:"submenu,omitempty"`
}

// allows reports whether role is in the item's permitted-roles set.
func (i Item) allows(role domainauth.Role) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ActiveFor reports whether the item is the active one for the current
// location. Matching is exact string equality, no prefix or sub-route
// matching.
func (i Item) ActiveFor(current string) bool { return i.Target == current }

// Build returns the ordered subsequence of items visible to role. An empty
// role falls back to auth.DefaultRole rather than hiding the whole menu.
// Submenu entries are included wholesale when their parent is visible; they
// are not independently role-filtered.
func Build(menu []Item, role domainauth.Role) []Item {
	if role == "" {
		role = domainauth.DefaultRole
	}
	visible := make([]Item, 0, len(menu))
	for _, item := range menu {
		if item.allows(role) {
			visible = append(visible, item)
		}
	}
	return visible
}

// DefaultMenu is the application's static menu definition. Order matters:
// it is rendered top to bottom.
func DefaultMenu() []Item {
	allRoles := []domainauth.Role{domainauth.RoleAdmin, domainauth.RoleHRManager, domainauth.RoleClient}
	return []Item{
		{
			Label:  "Tableau de bord",
			Target: "/dashboard",
			Icon:   "layout-dashboard",
			Roles:  allRoles,
		},
		{
			Label:  "Ressources Humaines",
			Target: "/hr",
			Icon:   "users",
			Roles:  []domainauth.Role{domainauth.RoleAdmin, domainauth.RoleHRManager},
			Submenu: []Item{
				{Label: "Employés", Target: "/hr/employees", Icon: "user"},
				{Label: "Congés", Target: "/hr/leave", Icon: "calendar"},
			},
		},
		{
			Label:  "Projets",
			Target: "/projects",
			Icon:   "kanban",
			Roles:  allRoles,
		},
		{
			Label:  "CRM",
			Target: "/crm",
			Icon:   "handshake",
			Roles:  []domainauth.Role{domainauth.RoleAdmin, domainauth.RoleHRManager},
			Submenu: []Item{
				{Label: "Entreprises", Target: "/crm/companies", Icon: "building"},
				{Label: "Contacts", Target: "/crm/contacts", Icon: "contact"},
			},
		},
		{
			Label:  "Assistant",
			Target: "/assistant",
			Icon:   "sparkles",
			Roles:  allRoles,
		},
		{
			Label:  "Administration",
			Target: "/admin",
			Icon:   "shield",
			Roles:  []domainauth.Role{domainauth.RoleAdmin},
			Submenu: []Item{
				{Label: "Utilisateurs", Target: "/admin/users", Icon: "user-cog"},
				{Label: "Journal de connexion", Target: "/admin/logins", Icon: "scroll"},
			},
		},
	}
}
