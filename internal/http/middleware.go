// Package httpx contains the HTTP surface: middleware, handlers, and routes.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	apperrors "github.com/arcadis/entreprise-os/internal/errors"
	"github.com/arcadis/entreprise-os/internal/ports"
)

// SessionCookieName is the cookie carrying the server-side session ID.
const SessionCookieName = "session_id"

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// StateResolver determines the session lifecycle state of one request.
type StateResolver interface {
	Resolve(r *http.Request) domainauth.State
}

// SessionStateResolver resolves the request state from the session cookie
// and the server-side session store.
type SessionStateResolver struct {
	Sessions ports.SessionStore
	Logger   *slog.Logger
}

// Resolve maps the session cookie to a lifecycle state. A missing or unknown
// cookie is unauthenticated; a pending session or a store failure is loading,
// so guarded routes hold the request instead of bouncing it to login.
func (s *SessionStateResolver) Resolve(r *http.Request) domainauth.State {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return domainauth.Unauthenticated()
	}

	sess, err := s.Sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return domainauth.Unauthenticated()
		}
		s.logger().WarnContext(r.Context(), "session lookup failed", "error", err)
		return domainauth.Loading()
	}

	if sess.Status == domainauth.SessionPending {
		return domainauth.Loading()
	}
	principal := sess.Principal
	return domainauth.Authenticated(principal)
}

func (s *SessionStateResolver) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// RequireSession returns the route guard. Requests with an undetermined
// state are answered 503 with Retry-After rather than redirected, so a
// session that is still resolving never bounces the user to login.
// Unauthenticated browser requests are redirected to login with the
// requested location preserved; API requests get 401 JSON. Panics when
// resolver is nil: guarding routes without a resolver is a wiring bug.
func RequireSession(resolver StateResolver) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("httpx: RequireSession requires a state resolver")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := resolver.Resolve(r)
			switch state.Phase {
			case domainauth.PhaseLoading:
				w.Header().Set("Retry-After", "1")
				WriteError(w, ErrorParams{
					Code:    http.StatusServiceUnavailable,
					ErrCode: "session_pending",
					Err:     errors.New("session is being established"),
				})
			case domainauth.PhaseAuthenticated:
				ctx := SetPrincipalInContext(r.Context(), state.Principal)
				next.ServeHTTP(w, r.WithContext(ctx))
			default:
				if isBrowserRequest(r) {
					redirectToLogin(w, r)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
			}
		})
	}
}

// RequireRole returns a middleware gating on the role hierarchy. It must run
// inside RequireSession; a request without a principal is rejected 401.
// Browser requests failing the check are sent to the unauthorized page, API
// requests get 403 JSON.
func RequireRole(requiredRole domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteError(w, ErrorParams{
					Code:    http.StatusUnauthorized,
					ErrCode: "authentication_required",
					Err:     errors.New("authentication required"),
				})
				return
			}

			if !hasRequiredRole(principal.EffectiveRole(), requiredRole) {
				if isBrowserRequest(r) {
					http.Redirect(w, r, "/unauthorized", http.StatusSeeOther)
					return
				}
				WriteError(w, ErrorParams{
					Code:    http.StatusForbidden,
					ErrCode: "insufficient_permissions",
					Err:     errors.New("insufficient permissions"),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// hasRequiredRole checks the role hierarchy: client < hr_manager < admin.
// Unknown roles never pass.
func hasRequiredRole(userRole, requiredRole domainauth.Role) bool {
	roleHierarchy := map[domainauth.Role]int{
		domainauth.RoleClient:    0,
		domainauth.RoleHRManager: 1,
		domainauth.RoleAdmin:     2,
	}

	userLevel, userExists := roleHierarchy[userRole]
	requiredLevel, requiredExists := roleHierarchy[requiredRole]
	if !userExists || !requiredExists {
		return false
	}
	return userLevel >= requiredLevel
}

// isBrowserRequest determines whether a request expects an HTML navigation
// response rather than JSON. API routes are never browser requests.
func isBrowserRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return false
	}
	accept := r.Header.Get("Accept")
	if accept == "" {
		return true
	}
	return strings.Contains(accept, "text/html")
}

// redirectToLogin sends the browser to the login page with the requested
// location preserved in redirect_uri so login can land the user back where
// they were headed.
func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	redirectPath := safeRedirectPath(r.URL.RequestURI())

	u := url.URL{Path: "/auth/login"}
	q := url.Values{}
	q.Set("redirect_uri", redirectPath)
	u.RawQuery = q.Encode()

	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

// safeRedirectPath ensures the provided redirect is a same-origin relative
// path starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
