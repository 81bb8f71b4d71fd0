package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	apperrors "github.com/arcadis/entreprise-os/internal/errors"
	"github.com/arcadis/entreprise-os/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func testSession(id string) domainauth.Session {
	return domainauth.Session{
		ID:     id,
		Status: domainauth.SessionActive,
		Principal: domainauth.Principal{
			ID:        "user-123",
			Email:     "marie@arcadis.fr",
			Role:      domainauth.RoleHRManager,
			FirstName: "Marie",
			CompanyID: "co-1",
		},
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)
	ctx := context.Background()

	session := testSession("test-session-1")
	require.NoError(t, store.Save(ctx, session))

	retrieved, err := store.Get(ctx, "test-session-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, retrieved.ID)
	assert.Equal(t, session.Status, retrieved.Status)
	assert.Equal(t, session.Principal.ID, retrieved.Principal.ID)
	assert.Equal(t, session.Principal.Role, retrieved.Principal.Role)
	assert.WithinDuration(t, session.ExpiresAt, retrieved.ExpiresAt, time.Second)
}

func TestSessionStore_GetNonExistent(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)

	_, err := store.Get(context.Background(), "non-existent")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSessionStore_SaveRejectsExpired(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)

	session := testSession("expired")
	session.ExpiresAt = time.Now().Add(-time.Minute)
	assert.Error(t, store.Save(context.Background(), session))
}

func TestSessionStore_SaveRejectsEmptyID(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)
	assert.Error(t, store.Save(context.Background(), testSession("")))
}

func TestSessionStore_Delete(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)
	ctx := context.Background()

	session := testSession("test-session-delete")
	require.NoError(t, store.Save(ctx, session))

	require.NoError(t, store.Delete(ctx, session.ID))

	_, err := store.Get(ctx, session.ID)
	assert.True(t, apperrors.IsNotFound(err))

	// deleting again is a no-op
	assert.NoError(t, store.Delete(ctx, session.ID))
}

func TestSessionStore_CustomPrefix(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewSessionStoreWithPrefix(client, "arcadis:sess:")
	ctx := context.Background()

	session := testSession("prefixed")
	require.NoError(t, store.Save(ctx, session))

	keys, err := client.Keys(ctx, "arcadis:sess:*").Result()
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}
