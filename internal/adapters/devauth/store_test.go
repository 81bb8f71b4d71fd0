package devauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	"github.com/arcadis/entreprise-os/internal/ports"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Config{
		UserID:   "dev-user-1",
		Email:    "dev@arcadis.fr",
		Password: "devpass",
	})
	require.NoError(t, err)
	return s
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(Config{Email: "dev@arcadis.fr"})
	require.Error(t, err)
	_, err = NewStore(Config{UserID: "dev-user-1"})
	require.Error(t, err)
}

func TestSignInWithPassword(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	identity, err := s.SignInWithPassword(ctx, "dev@arcadis.fr", "devpass")
	require.NoError(t, err)
	assert.Equal(t, "dev-user-1", identity.ID)
	assert.True(t, identity.ExpiresAt.After(time.Now()))

	current, err := s.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "dev-user-1", current.ID)
}

func TestSignInWithPassword_WrongCredentials(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.SignInWithPassword(ctx, "dev@arcadis.fr", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid login credentials")

	_, err = s.SignInWithPassword(ctx, "other@arcadis.fr", "devpass")
	require.Error(t, err)
}

func TestSignInWithPassword_AnyPasswordWhenUnset(t *testing.T) {
	s, err := NewStore(Config{UserID: "dev-user-1", Email: "dev@arcadis.fr"})
	require.NoError(t, err)

	_, err = s.SignInWithPassword(context.Background(), "dev@arcadis.fr", "whatever")
	require.NoError(t, err)
}

func TestSignOut_NotifiesListeners(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var events []ports.IdentityEvent
	unsubscribe := s.OnSessionChange(func(event ports.IdentityEvent, _ *domainauth.RawIdentity) {
		events = append(events, event)
	})
	defer unsubscribe()

	_, err := s.SignInWithPassword(ctx, "dev@arcadis.fr", "devpass")
	require.NoError(t, err)
	require.NoError(t, s.SignOut(ctx))

	assert.Equal(t, []ports.IdentityEvent{ports.IdentityEventSignedIn, ports.IdentityEventSignedOut}, events)

	current, err := s.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestCurrentSession_ExpiredSessionClears(t *testing.T) {
	s, err := NewStore(Config{
		UserID:          "dev-user-1",
		Email:           "dev@arcadis.fr",
		SessionDuration: -time.Minute,
	})
	require.NoError(t, err)

	_, err = s.SignInWithPassword(context.Background(), "dev@arcadis.fr", "x")
	require.NoError(t, err)

	current, err := s.CurrentSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestSignUp_IssuesEphemeralIdentity(t *testing.T) {
	s := newTestStore(t)

	identity, err := s.SignUp(context.Background(), ports.SignUpInput{
		Email:    "new@arcadis.fr",
		Metadata: map[string]any{"first_name": "Paul"},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, identity.ID)
	assert.Equal(t, "new@arcadis.fr", identity.Email)
	assert.Equal(t, "Paul", identity.Metadata["first_name"])
}
