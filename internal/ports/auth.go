package ports

// Package ports defines interfaces (hexagonal ports) for auth-related
// behavior. Implementations live in internal/adapters and internal/data;
// orchestration in internal/service and internal/session.

import (
	"context"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
)

// IdentityEvent names a session-change notification from the identity store.
type IdentityEvent string

const (
	IdentityEventInitialSession IdentityEvent = "INITIAL_SESSION"
	IdentityEventSignedIn       IdentityEvent = "SIGNED_IN"
	IdentityEventSignedOut      IdentityEvent = "SIGNED_OUT"
	IdentityEventTokenRefreshed IdentityEvent = "TOKEN_REFRESHED"
)

// SessionChangeFunc receives session-change notifications. identity is nil
// when the event leaves no session behind (sign-out, expiry).
type SessionChangeFunc func(event IdentityEvent, identity *domainauth.RawIdentity)

// SignUpInput groups parameters for registering a new identity.
type SignUpInput struct {
	Email    string
	Password string
	Metadata map[string]any
}

// IdentityStore is the hosted identity provider boundary. It issues and
// refreshes opaque session tokens and notifies subscribers on change.
type IdentityStore interface {
	// CurrentSession returns the identity backing the store's current
	// session, or nil when there is none.
	CurrentSession(ctx context.Context) (*domainauth.RawIdentity, error)

	// OnSessionChange registers a change listener and returns an
	// unsubscribe handle. The handle must be called when the owning scope
	// is torn down.
	OnSessionChange(fn SessionChangeFunc) (unsubscribe func())

	SignInWithPassword(ctx context.Context, email, password string) (*domainauth.RawIdentity, error)
	SignUp(ctx context.Context, in SignUpInput) (*domainauth.RawIdentity, error)
	SignOut(ctx context.Context) error
}

// ProfileResolver fetches the tenant profile record for an identity.
// Implementations return a NotFound error when no row exists.
type ProfileResolver interface {
	ProfileByUserID(ctx context.Context, userID string) (*domainauth.ProfileRecord, error)
}

// SessionStore persists and retrieves server-side user sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// ProfileInput groups the writable attributes of a profile.
type ProfileInput struct {
	UserID    string
	Role      domainauth.Role
	FirstName string
	LastName  string
	CompanyID string
}

// ProfileAdmin is the administrative surface over profile records:
// provisioning, listing, activation toggling, and soft deletion.
type ProfileAdmin interface {
	CreateProfile(ctx context.Context, in ProfileInput) (*domainauth.ProfileRecord, error)
	UpdateProfile(ctx context.Context, in ProfileInput) (*domainauth.ProfileRecord, error)
	ListProfilesByCompany(ctx context.Context, companyID string) ([]domainauth.ProfileRecord, error)
	SetProfileActive(ctx context.Context, userID string, active bool) error
	SoftDeleteProfile(ctx context.Context, userID string) error
}

// LoginAuditRecorder persists the login audit trail. Record failures must
// never fail the sign-in itself; callers log and move on.
type LoginAuditRecorder interface {
	Record(ctx context.Context, entry domainauth.LoginAuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]domainauth.LoginAuditEntry, error)
}

// AuthProvider initiates and completes a redirect-based SSO flow against an
// external IdP. Used only when the SSO sign-in mode is configured.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an
	// opaque state, and a nonce.
	Begin(ctx context.Context, redirectURL string) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and
	// returns the authenticated identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.RawIdentity, error)
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}
