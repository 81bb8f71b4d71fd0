package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	mockauth "github.com/arcadis/entreprise-os/internal/mocks/auth"
)

func newTestRouter(t *testing.T, sessions *mockauth.MemorySessionStore) http.Handler {
	t.Helper()
	return NewRouter(RouterServices{
		Auth:     &stubAuthService{},
		Sessions: sessions,
		Profiles: newStubProfileAdmin(),
		Audit:    mockauth.NewMemoryLoginAudit(),
		Logger:   testLogger(),
	})
}

func TestRouter_HealthIsPublic(t *testing.T) {
	router := newTestRouter(t, mockauth.NewMemorySessionStore())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRouter_NavigationRequiresSession(t *testing.T) {
	router := newTestRouter(t, mockauth.NewMemorySessionStore())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/navigation", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_NavigationWithSession(t *testing.T) {
	sessions := mockauth.NewMemorySessionStore()
	require.NoError(t, sessions.Save(context.Background(), activeSession("sess-1", domainauth.RoleClient)))
	router := newTestRouter(t, sessions)

	r := withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/navigation", nil), "sess-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AdminRoutesEnforceRole(t *testing.T) {
	sessions := mockauth.NewMemorySessionStore()
	require.NoError(t, sessions.Save(context.Background(), activeSession("client-sess", domainauth.RoleClient)))
	require.NoError(t, sessions.Save(context.Background(), activeSession("admin-sess", domainauth.RoleAdmin)))
	router := newTestRouter(t, sessions)

	r := withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/admin/profiles?company_id=co-1", nil), "client-sess")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r = withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/admin/profiles?company_id=co-1", nil), "admin-sess")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_BrowserNavigationRedirectsToLogin(t *testing.T) {
	router := newTestRouter(t, mockauth.NewMemorySessionStore())

	r := httptest.NewRequest(http.MethodGet, "/api/navigation", nil)
	r.Header.Set("Accept", "text/html")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	// /api/ paths stay JSON even for browser-looking requests
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
