package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
)

type navResponse struct {
	Role  domainauth.Role `json:"role"`
	Items []navItem       `json:"items"`
}

func getNavigation(t *testing.T, role domainauth.Role, current string) navResponse {
	t.Helper()
	h := &NavHandlers{}

	target := "/api/navigation"
	if current != "" {
		target += "?current=" + current
	}
	r := withPrincipal(httptest.NewRequest(http.MethodGet, target, nil), testPrincipal(role))
	w := httptest.NewRecorder()
	h.Navigation(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var body navResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func labels(items []navItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Label)
	}
	return out
}

func TestNavigation_AdminSeesFullMenu(t *testing.T) {
	body := getNavigation(t, domainauth.RoleAdmin, "")

	assert.Equal(t, domainauth.RoleAdmin, body.Role)
	assert.Equal(t, []string{
		"Tableau de bord", "Ressources Humaines", "Projets", "CRM", "Assistant", "Administration",
	}, labels(body.Items))
}

func TestNavigation_ClientSeesReducedMenu(t *testing.T) {
	body := getNavigation(t, domainauth.RoleClient, "")

	assert.Equal(t, []string{"Tableau de bord", "Projets", "Assistant"}, labels(body.Items))
}

func TestNavigation_SubmenuIncludedWholesale(t *testing.T) {
	body := getNavigation(t, domainauth.RoleHRManager, "")

	var hr *navItem
	for i := range body.Items {
		if body.Items[i].Label == "Ressources Humaines" {
			hr = &body.Items[i]
		}
	}
	require.NotNil(t, hr)
	assert.Equal(t, []string{"Employés", "Congés"}, labels(hr.Submenu))
}

func TestNavigation_ActiveIsExactMatch(t *testing.T) {
	body := getNavigation(t, domainauth.RoleAdmin, "/hr/employees")

	for _, item := range body.Items {
		assert.False(t, item.Active, "top-level %s must not be active for a sub-route", item.Label)
		for _, sub := range item.Submenu {
			if sub.Target == "/hr/employees" {
				assert.True(t, sub.Active)
			} else {
				assert.False(t, sub.Active)
			}
		}
	}
}

func TestNavigation_NoPrincipalFallsBackToDefaultRole(t *testing.T) {
	h := &NavHandlers{}

	r := httptest.NewRequest(http.MethodGet, "/api/navigation", nil)
	w := httptest.NewRecorder()
	h.Navigation(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var body navResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domainauth.DefaultRole, body.Role)
	assert.Equal(t, []string{"Tableau de bord", "Projets", "Assistant"}, labels(body.Items))
}
