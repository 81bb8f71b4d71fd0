package httpx

import (
	"net/http"

	"github.com/arcadis/entreprise-os/internal/domain/nav"
)

// NavHandlers serves the role-gated navigation menu.
type NavHandlers struct {
	Menu []nav.Item
}

// navItem is the wire shape of one menu entry, with the active flag computed
// against the caller's current location.
type navItem struct {
	Label   string    `json:"label"`
	Target  string    `json:"target"`
	Icon    string    `json:"icon,omitempty"`
	Active  bool      `json:"active"`
	Submenu []navItem `json:"submenu,omitempty"`
}

// Navigation returns the menu visible to the caller's role.
// GET /api/navigation?current=<path>. The current query parameter marks the
// matching item active; matching is exact.
func (h *NavHandlers) Navigation(w http.ResponseWriter, r *http.Request) {
	role := RoleFromContext(r.Context())
	current := r.URL.Query().Get("current")

	menu := h.Menu
	if menu == nil {
		menu = nav.DefaultMenu()
	}

	visible := nav.Build(menu, role)
	items := make([]navItem, 0, len(visible))
	for _, item := range visible {
		items = append(items, toNavItem(item, current))
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"role":  role,
		"items": items,
	})
}

func toNavItem(item nav.Item, current string) navItem {
	out := navItem{
		Label:  item.Label,
		Target: item.Target,
		Icon:   item.Icon,
		Active: item.ActiveFor(current),
	}
	if len(item.Submenu) > 0 {
		out.Submenu = make([]navItem, 0, len(item.Submenu))
		for _, sub := range item.Submenu {
			out.Submenu = append(out.Submenu, toNavItem(sub, current))
		}
	}
	return out
}
