package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	apperrors "github.com/arcadis/entreprise-os/internal/errors"
	authmocks "github.com/arcadis/entreprise-os/internal/mocks/auth"
	"github.com/arcadis/entreprise-os/internal/ports"
)

type authFixture struct {
	identity *authmocks.MemoryIdentityStore
	profiles *authmocks.StubProfileResolver
	sessions *authmocks.MemorySessionStore
	audit    *authmocks.MemoryLoginAudit
	svc      *AuthService
}

func newAuthFixture(t *testing.T, opts func(*AuthServiceOptions)) *authFixture {
	t.Helper()
	f := &authFixture{
		identity: authmocks.NewMemoryIdentityStore(),
		profiles: authmocks.NewStubProfileResolver(),
		sessions: authmocks.NewMemorySessionStore(),
		audit:    authmocks.NewMemoryLoginAudit(),
	}
	o := AuthServiceOptions{
		Identity: f.identity,
		Profiles: f.profiles,
		Sessions: f.sessions,
		Audit:    f.audit,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if opts != nil {
		opts(&o)
	}
	svc, err := NewAuthService(o)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *authFixture) seedUser(role domainauth.Role, active bool, deletedAt *time.Time) {
	f.identity.Register("marie@arcadis.fr", "s3cret", domainauth.RawIdentity{
		ID:        "u1",
		Email:     "marie@arcadis.fr",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	f.profiles.Profiles["u1"] = &domainauth.ProfileRecord{
		UserID:    "u1",
		Role:      role,
		FirstName: "Marie",
		LastName:  "Dupont",
		CompanyID: "co-1",
		IsActive:  active,
		DeletedAt: deletedAt,
	}
}

func lastOutcome(t *testing.T, audit *authmocks.MemoryLoginAudit) domainauth.LoginAuditEntry {
	t.Helper()
	entries := audit.Entries()
	require.NotEmpty(t, entries)
	return entries[len(entries)-1]
}

func TestNewAuthService_RequiresDependencies(t *testing.T) {
	_, err := NewAuthService(AuthServiceOptions{})
	require.Error(t, err)
}

func TestSignIn_Success(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleHRManager, true, nil)

	res, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")

	require.NoError(t, err)
	assert.NotEmpty(t, res.Session.ID)
	assert.Equal(t, domainauth.SessionActive, res.Session.Status)
	assert.Equal(t, "u1", res.Principal.ID)
	assert.Equal(t, domainauth.RoleHRManager, res.Principal.Role)
	assert.Equal(t, "Marie", res.Principal.FirstName)

	stored, err := f.sessions.Get(context.Background(), res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Principal, stored.Principal)

	assert.Equal(t, domainauth.OutcomeSuccess, lastOutcome(t, f.audit).Outcome)
}

func TestSignIn_NormalizesEmail(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleClient, true, nil)

	_, err := f.svc.SignIn(context.Background(), "  Marie@Arcadis.FR ", "s3cret")

	require.NoError(t, err)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleClient, true, nil)

	_, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "wrong")

	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err))
	assert.Equal(t, MsgInvalidCredentials, err.Error())
	assert.Equal(t, domainauth.OutcomeInvalidCredentials, lastOutcome(t, f.audit).Outcome)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestSignIn_UpstreamErrorPassesThrough(t *testing.T) {
	f := newAuthFixture(t, nil)
	upstream := errors.New("identity store returned 502")
	f.identity.SignInErr = upstream

	_, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")

	require.ErrorIs(t, err, upstream)
	assert.Equal(t, domainauth.OutcomeError, lastOutcome(t, f.audit).Outcome)
}

func TestSignIn_DeletedAccount(t *testing.T) {
	deletedAt := time.Now().Add(-time.Hour)
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleClient, true, &deletedAt)

	_, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")

	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
	assert.Equal(t, MsgAccountDeleted, err.Error())
	assert.Equal(t, domainauth.OutcomeDeleted, lastOutcome(t, f.audit).Outcome)
	assert.Equal(t, 0, f.sessions.Len())

	// upstream session must have been revoked
	current, cerr := f.identity.CurrentSession(context.Background())
	require.NoError(t, cerr)
	assert.Nil(t, current)
}

func TestSignIn_DeactivatedAccount(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleClient, false, nil)

	_, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")

	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
	assert.Equal(t, MsgAccountDeactivated, err.Error())
	assert.Equal(t, domainauth.OutcomeDeactivated, lastOutcome(t, f.audit).Outcome)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestSignIn_DeletedWinsOverDeactivated(t *testing.T) {
	deletedAt := time.Now()
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleClient, false, &deletedAt)

	_, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")

	require.Error(t, err)
	assert.Equal(t, MsgAccountDeleted, err.Error())
}

func TestSignIn_ProfileLookupFailure_DegradesToDefaultRole(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleAdmin, true, nil)
	f.profiles.Err = errors.New("profiles table unreachable")

	res, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")

	require.NoError(t, err)
	assert.Empty(t, res.Principal.Role)
	assert.Equal(t, domainauth.DefaultRole, res.Principal.EffectiveRole())
}

func TestSignIn_MissingProfile_SignsInWithDefaultRole(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.identity.Register("new@arcadis.fr", "s3cret", domainauth.RawIdentity{
		ID: "u9", Email: "new@arcadis.fr", ExpiresAt: time.Now().Add(time.Hour),
	})

	res, err := f.svc.SignIn(context.Background(), "new@arcadis.fr", "s3cret")

	require.NoError(t, err)
	assert.Equal(t, domainauth.DefaultRole, res.Principal.EffectiveRole())
}

func TestSignIn_PanicMapsToGenericError(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleClient, true, nil)
	f.profiles.Err = nil
	f.svc.profiles = authmocks.ProfileResolverFunc(func(context.Context, string) (*domainauth.ProfileRecord, error) {
		panic("boom")
	})

	res, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")

	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
	assert.Equal(t, MsgUnexpected, err.Error())
	assert.Empty(t, res.Session.ID)
	assert.Equal(t, domainauth.OutcomeError, lastOutcome(t, f.audit).Outcome)
}

func TestSignIn_SessionSaveFailure(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleClient, true, nil)
	f.sessions.SaveErr = errors.New("redis down")

	_, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")

	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
	assert.Contains(t, err.Error(), MsgUnexpected)
}

func TestSignIn_RateLimited(t *testing.T) {
	f := newAuthFixture(t, func(o *AuthServiceOptions) {
		o.LoginRate = rate.Every(time.Hour)
		o.LoginBurst = 1
	})
	f.seedUser(domainauth.RoleClient, true, nil)

	_, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "wrong")
	require.Error(t, err)

	_, err = f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")
	require.Error(t, err)
	assert.True(t, apperrors.IsRateLimited(err))
	assert.Equal(t, MsgTooManyAttempts, err.Error())
	assert.Equal(t, domainauth.OutcomeRateLimited, lastOutcome(t, f.audit).Outcome)
}

func TestSignIn_RateLimitIsPerEmail(t *testing.T) {
	f := newAuthFixture(t, func(o *AuthServiceOptions) {
		o.LoginRate = rate.Every(time.Hour)
		o.LoginBurst = 1
	})
	f.seedUser(domainauth.RoleClient, true, nil)
	f.identity.Register("paul@arcadis.fr", "s3cret", domainauth.RawIdentity{
		ID: "u2", Email: "paul@arcadis.fr", ExpiresAt: time.Now().Add(time.Hour),
	})

	_, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "wrong")
	require.Error(t, err)

	_, err = f.svc.SignIn(context.Background(), "paul@arcadis.fr", "s3cret")
	require.NoError(t, err)
}

func TestSignUp_ComposesIdentityOnlyPrincipal(t *testing.T) {
	f := newAuthFixture(t, nil)

	p, err := f.svc.SignUp(context.Background(), ports.SignUpInput{
		Email:    "New@Arcadis.FR",
		Password: "s3cret",
	})

	require.NoError(t, err)
	assert.Equal(t, "new@arcadis.fr", p.Email)
	assert.Equal(t, domainauth.DefaultRole, p.EffectiveRole())
}

func TestSignOut_DeletesSessionAndRevokes(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleClient, true, nil)

	res, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")
	require.NoError(t, err)
	require.Equal(t, 1, f.sessions.Len())

	require.NoError(t, f.svc.SignOut(context.Background(), res.Session.ID))
	assert.Equal(t, 0, f.sessions.Len())

	current, err := f.identity.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestGetSession(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.seedUser(domainauth.RoleClient, true, nil)

	res, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")
	require.NoError(t, err)

	sess, err := f.svc.GetSession(context.Background(), res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, sess.ID)

	_, err = f.svc.GetSession(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCompleteSSO_EstablishesSession(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.profiles.Profiles["u1"] = &domainauth.ProfileRecord{
		UserID:   "u1",
		Role:     domainauth.RoleAdmin,
		IsActive: true,
	}

	res, err := f.svc.CompleteSSO(context.Background(), domainauth.RawIdentity{
		ID:        "u1",
		Email:     "Marie@Arcadis.FR",
		ExpiresAt: time.Now().Add(time.Hour),
	})

	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, res.Principal.Role)
	assert.NotEmpty(t, res.Session.ID)

	entry := lastOutcome(t, f.audit)
	assert.Equal(t, domainauth.OutcomeSuccess, entry.Outcome)
	assert.Equal(t, "marie@arcadis.fr", entry.Email)
}

func TestCompleteSSO_RejectsDeletedAccount(t *testing.T) {
	f := newAuthFixture(t, nil)
	deleted := time.Now().Add(-time.Hour)
	f.profiles.Profiles["u1"] = &domainauth.ProfileRecord{
		UserID:    "u1",
		Role:      domainauth.RoleClient,
		DeletedAt: &deleted,
	}

	_, err := f.svc.CompleteSSO(context.Background(), domainauth.RawIdentity{ID: "u1", Email: "marie@arcadis.fr"})

	require.Error(t, err)
	assert.True(t, apperrors.IsForbidden(err))
	assert.Contains(t, err.Error(), MsgAccountDeleted)
}

// recordingSessionStore captures every Save in order, on top of the
// in-memory store's behavior.
type recordingSessionStore struct {
	*authmocks.MemorySessionStore

	mu    sync.Mutex
	saved []domainauth.Session
}

func (r *recordingSessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	r.mu.Lock()
	r.saved = append(r.saved, sess)
	r.mu.Unlock()
	return r.MemorySessionStore.Save(ctx, sess)
}

func TestSignIn_SessionPendingUntilProfileGatePasses(t *testing.T) {
	rec := &recordingSessionStore{MemorySessionStore: authmocks.NewMemorySessionStore()}
	f := newAuthFixture(t, func(o *AuthServiceOptions) { o.Sessions = rec })
	f.seedUser(domainauth.RoleClient, true, nil)

	res, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")

	require.NoError(t, err)
	require.Len(t, rec.saved, 2)
	assert.Equal(t, domainauth.SessionPending, rec.saved[0].Status)
	assert.Equal(t, domainauth.SessionActive, rec.saved[1].Status)
	assert.Equal(t, rec.saved[0].ID, rec.saved[1].ID)
	assert.Equal(t, res.Session.ID, rec.saved[1].ID)

	stored, err := rec.Get(context.Background(), res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, domainauth.SessionActive, stored.Status)
}

func TestSignIn_DeletedAccountDiscardsPendingSession(t *testing.T) {
	rec := &recordingSessionStore{MemorySessionStore: authmocks.NewMemorySessionStore()}
	f := newAuthFixture(t, func(o *AuthServiceOptions) { o.Sessions = rec })
	deleted := time.Now().Add(-time.Hour)
	f.seedUser(domainauth.RoleClient, true, &deleted)

	_, err := f.svc.SignIn(context.Background(), "marie@arcadis.fr", "s3cret")

	require.Error(t, err)
	require.Len(t, rec.saved, 1)
	assert.Equal(t, domainauth.SessionPending, rec.saved[0].Status)

	_, err = rec.Get(context.Background(), rec.saved[0].ID)
	assert.True(t, apperrors.IsNotFound(err))
}
