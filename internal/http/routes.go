package httpx

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arcadis/entreprise-os/internal/adapters/aifunc"
	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	"github.com/arcadis/entreprise-os/internal/domain/nav"
	"github.com/arcadis/entreprise-os/internal/observability/metrics"
	"github.com/arcadis/entreprise-os/internal/ports"
)

// RouterServices holds everything the HTTP router needs.
type RouterServices struct {
	Auth     AuthServiceInterface
	Sessions ports.SessionStore
	Profiles ports.ProfileAdmin
	Audit    ports.LoginAuditRecorder

	// Optional: redirect-based SSO provider.
	Provider ports.AuthProvider
	// Optional: process-level composed session state for the status endpoint.
	States ProcessStateSource
	// Optional: AI assistant edge-function invoker.
	Assistant *aifunc.Invoker
	// Optional: Prometheus registry for the /metrics endpoint.
	Metrics *prometheus.Registry

	BaseURL      string
	CookieDomain string
	Logger       *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:          services.Auth,
		Provider:     services.Provider,
		States:       services.States,
		BaseURL:      services.BaseURL,
		CookieDomain: services.CookieDomain,
		Logger:       services.Logger,
	}
	registerAuthRoutes(mux, authHandlers)

	resolver := &SessionStateResolver{Sessions: services.Sessions, Logger: services.Logger}
	guard := RequireSession(resolver)
	adminOnly := RequireRole(domainauth.RoleAdmin)

	navHandlers := &NavHandlers{Menu: nav.DefaultMenu()}
	mux.Handle("GET /api/navigation", guard(http.HandlerFunc(navHandlers.Navigation)))

	assistantHandlers := &AssistantHandlers{Invoker: services.Assistant}
	mux.Handle("POST /api/assistant/{function}", guard(http.HandlerFunc(assistantHandlers.Invoke)))

	profileHandlers := &ProfileHandlers{
		Profiles: services.Profiles,
		Audit:    services.Audit,
		Logger:   services.Logger,
	}
	registerAdminRoutes(mux, profileHandlers, func(h http.Handler) http.Handler {
		return guard(adminOnly(h))
	})

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))
	if services.Metrics != nil {
		mux.Handle("GET /metrics", metrics.Handler(services.Metrics))
	}

	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return Logging(logger)(Recover(logger)(mux))
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("POST /auth/login", h.SignIn)
	mux.HandleFunc("POST /auth/signup", h.SignUp)
	mux.HandleFunc("POST /auth/logout", h.SignOut)
	mux.HandleFunc("GET /auth/status", h.Status)
	mux.HandleFunc("GET /auth/sso/login", h.SSOLogin)
	mux.HandleFunc("GET /auth/callback", h.SSOCallback)
}

func registerAdminRoutes(mux *http.ServeMux, h *ProfileHandlers, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /api/admin/profiles", wrap(http.HandlerFunc(h.List)))
	mux.Handle("POST /api/admin/profiles", wrap(http.HandlerFunc(h.Create)))
	mux.Handle("PUT /api/admin/profiles/{user_id}", wrap(http.HandlerFunc(h.Update)))
	mux.Handle("POST /api/admin/profiles/{user_id}/active", wrap(http.HandlerFunc(h.SetActive)))
	mux.Handle("DELETE /api/admin/profiles/{user_id}", wrap(http.HandlerFunc(h.Delete)))
	mux.Handle("GET /api/admin/logins", wrap(http.HandlerFunc(h.LoginAudit)))
}
