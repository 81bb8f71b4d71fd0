package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	apperrors "github.com/arcadis/entreprise-os/internal/errors"
	"github.com/arcadis/entreprise-os/internal/observability/metrics"
	"github.com/arcadis/entreprise-os/internal/ports"
)

// User-facing auth messages. The product ships in French; internal logs stay
// in English.
const (
	MsgInvalidCredentials = "Email ou mot de passe incorrect"
	MsgAccountDeleted     = "Ce compte a été supprimé"
	MsgAccountDeactivated = "Ce compte a été désactivé"
	MsgTooManyAttempts    = "Trop de tentatives de connexion. Veuillez réessayer plus tard."
	MsgUnexpected         = "Une erreur inattendue est survenue"
)

// upstream rejection text for bad credentials, matched case-insensitively
const invalidCredentialsFragment = "invalid login credentials"

const defaultSessionTTL = 24 * time.Hour

// limiterCap bounds the per-email limiter map; past it the map is reset
// rather than letting an enumeration attack grow it without bound.
const limiterCap = 10000

// AuthServiceOptions groups dependencies for NewAuthService. Identity,
// Profiles, and Sessions are required; Audit and Metrics are optional.
type AuthServiceOptions struct {
	Identity ports.IdentityStore
	Profiles ports.ProfileResolver
	Sessions ports.SessionStore
	Audit    ports.LoginAuditRecorder
	Metrics  *metrics.AuthMetrics
	Logger   *slog.Logger

	// SessionTTL bounds server-side session lifetime. Zero means the
	// default of 24h.
	SessionTTL time.Duration

	// LoginRate and LoginBurst throttle sign-in attempts per email.
	// A zero LoginRate disables throttling.
	LoginRate  rate.Limit
	LoginBurst int
}

// AuthService orchestrates the credential sign-in flow: identity store
// exchange, profile gate (deleted / deactivated accounts), server-side
// session issuance, and the audit trail.
type AuthService struct {
	identity   ports.IdentityStore
	profiles   ports.ProfileResolver
	sessions   ports.SessionStore
	audit      ports.LoginAuditRecorder
	metrics    *metrics.AuthMetrics
	logger     *slog.Logger
	sessionTTL time.Duration

	loginRate  rate.Limit
	loginBurst int
	limiterMu  sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewAuthService validates dependencies and builds the service.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	if opts.Identity == nil {
		return nil, errors.New("auth service: identity store is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("auth service: profile resolver is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("auth service: session store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	burst := opts.LoginBurst
	if burst <= 0 {
		burst = 1
	}
	return &AuthService{
		identity:   opts.Identity,
		profiles:   opts.Profiles,
		sessions:   opts.Sessions,
		audit:      opts.Audit,
		metrics:    opts.Metrics,
		logger:     logger,
		sessionTTL: ttl,
		loginRate:  opts.LoginRate,
		loginBurst: burst,
		limiters:   make(map[string]*rate.Limiter),
	}, nil
}

// SignInResult is the outcome of a successful credential sign-in.
type SignInResult struct {
	Session   domainauth.Session
	Principal domainauth.Principal
}

// SignIn exchanges credentials for a server-side session. Failures map to
// user-facing messages: bad credentials, deleted and deactivated accounts
// each get their own; anything unexpected, including a panic below this
// frame, collapses to a generic one so callers always land on an error
// screen rather than a crash.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (result SignInResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "panic during sign-in", "panic", r)
			s.record(ctx, email, "", domainauth.OutcomeError, "panic")
			result = SignInResult{}
			err = apperrors.Internal(MsgUnexpected)
		}
	}()

	email = strings.TrimSpace(strings.ToLower(email))

	if !s.allowAttempt(email) {
		s.record(ctx, email, "", domainauth.OutcomeRateLimited, "")
		return SignInResult{}, apperrors.RateLimited(MsgTooManyAttempts)
	}

	identity, err := s.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		if isInvalidCredentials(err) {
			s.record(ctx, email, "", domainauth.OutcomeInvalidCredentials, "")
			return SignInResult{}, apperrors.Unauthorized(MsgInvalidCredentials)
		}
		// Unexpected upstream failures are surfaced as-is.
		s.record(ctx, email, "", domainauth.OutcomeError, err.Error())
		return SignInResult{}, err
	}

	return s.establishSession(ctx, email, *identity)
}

// CompleteSSO finalizes a redirect-based sign-in: the identity has already
// been verified by the external provider, so only profile resolution and
// session establishment remain. Deleted and deactivated accounts are
// rejected the same way as with password sign-in.
func (s *AuthService) CompleteSSO(ctx context.Context, identity domainauth.RawIdentity) (SignInResult, error) {
	email := strings.TrimSpace(strings.ToLower(identity.Email))
	return s.establishSession(ctx, email, identity)
}

// establishSession is the shared tail of every sign-in path: profile lookup
// with degradation, deleted/deactivated rejection, principal composition,
// and session persistence. The session record is persisted as pending before
// the profile gate runs and flipped to active only once it passes, so a
// concurrent lookup of the session observes "still resolving", never a
// half-composed active session.
func (s *AuthService) establishSession(ctx context.Context, email string, identity domainauth.RawIdentity) (SignInResult, error) {
	sessID := uuid.NewString()
	expiresAt := time.Now().Add(s.sessionTTL)

	pending := domainauth.Session{
		ID:        sessID,
		Status:    domainauth.SessionPending,
		Principal: domainauth.ComposePrincipal(identity, nil),
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.Save(ctx, pending); err != nil {
		s.record(ctx, email, identity.ID, domainauth.OutcomeError, "session save failed")
		return SignInResult{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, MsgUnexpected)
	}

	profile, err := s.profiles.ProfileByUserID(ctx, identity.ID)
	switch {
	case err == nil:
		s.metrics.ProfileLookup("hit")
	case apperrors.IsNotFound(err):
		s.metrics.ProfileLookup("miss")
		profile = nil
	default:
		// Lookup failure degrades to an identity-only principal with the
		// default role rather than blocking sign-in.
		s.metrics.ProfileLookup("error")
		s.logger.WarnContext(ctx, "profile lookup failed during sign-in",
			"user_id", identity.ID, "error", err)
		profile = nil
	}

	if profile.Deleted() {
		s.discardSession(ctx, sessID)
		s.revoke(ctx)
		s.record(ctx, email, identity.ID, domainauth.OutcomeDeleted, "")
		return SignInResult{}, apperrors.Forbidden(MsgAccountDeleted)
	}
	if profile != nil && !profile.IsActive {
		s.discardSession(ctx, sessID)
		s.revoke(ctx)
		s.record(ctx, email, identity.ID, domainauth.OutcomeDeactivated, "")
		return SignInResult{}, apperrors.Forbidden(MsgAccountDeactivated)
	}

	principal := domainauth.ComposePrincipal(identity, profile)
	sess := domainauth.Session{
		ID:        sessID,
		Status:    domainauth.SessionActive,
		Principal: principal,
		ExpiresAt: expiresAt,
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.discardSession(ctx, sessID)
		s.record(ctx, email, identity.ID, domainauth.OutcomeError, "session save failed")
		return SignInResult{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, MsgUnexpected)
	}

	s.record(ctx, email, identity.ID, domainauth.OutcomeSuccess, "")
	s.logger.InfoContext(ctx, "user signed in",
		"user_id", identity.ID, "role", string(principal.EffectiveRole()))

	return SignInResult{Session: sess, Principal: principal}, nil
}

// SignUp registers a new identity. No profile row is provisioned here; an
// administrator assigns role and company afterwards, and until then the
// account operates with the default role.
func (s *AuthService) SignUp(ctx context.Context, in ports.SignUpInput) (domainauth.Principal, error) {
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	identity, err := s.identity.SignUp(ctx, in)
	if err != nil {
		return domainauth.Principal{}, err
	}
	s.logger.InfoContext(ctx, "user signed up", "user_id", identity.ID)
	return domainauth.ComposePrincipal(*identity, nil), nil
}

// SignOut deletes the server-side session and revokes the identity store
// session. The local delete is authoritative; upstream revocation is best
// effort.
func (s *AuthService) SignOut(ctx context.Context, sessionID string) error {
	if sessionID != "" {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, MsgUnexpected)
		}
	}
	s.revoke(ctx)
	return nil
}

// GetSession loads a server-side session by ID.
func (s *AuthService) GetSession(ctx context.Context, id string) (domainauth.Session, error) {
	return s.sessions.Get(ctx, id)
}

// discardSession removes a pending session that will never become active.
// Best effort: an orphaned pending record only holds the guard at loading
// until its TTL expires.
func (s *AuthService) discardSession(ctx context.Context, id string) {
	if err := s.sessions.Delete(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "discard pending session failed", "session_id", id, "error", err)
	}
}

// revoke tears down the identity store session, logging rather than
// propagating failures.
func (s *AuthService) revoke(ctx context.Context) {
	if err := s.identity.SignOut(ctx); err != nil {
		s.logger.WarnContext(ctx, "identity store sign-out failed", "error", err)
	}
}

// record writes an audit entry and bumps the sign-in counter. Audit failures
// are logged, never surfaced.
func (s *AuthService) record(ctx context.Context, email, userID, outcome, reason string) {
	s.metrics.SignIn(outcome)
	if s.audit == nil {
		return
	}
	entry := domainauth.LoginAuditEntry{
		ID:        uuid.NewString(),
		Email:     email,
		UserID:    userID,
		Outcome:   outcome,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "login audit write failed", "error", err, "outcome", outcome)
	}
}

// allowAttempt applies the per-email sign-in throttle.
func (s *AuthService) allowAttempt(email string) bool {
	if s.loginRate == 0 {
		return true
	}
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	if len(s.limiters) >= limiterCap {
		s.limiters = make(map[string]*rate.Limiter)
	}
	lim, ok := s.limiters[email]
	if !ok {
		lim = rate.NewLimiter(s.loginRate, s.loginBurst)
		s.limiters[email] = lim
	}
	return lim.Allow()
}

func isInvalidCredentials(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), invalidCredentialsFragment)
}
