package bootstrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcadis/entreprise-os/config"
)

func identityTestConfig(mode config.AuthMode, isDev bool) AuthConfig {
	return AuthConfig{
		IsDev: isDev,
		Auth: config.AuthConfig{
			Mode: mode,
			DevAuth: config.DevAuthConfig{
				UserID: "dev-user",
				Email:  "dev@arcadis.local",
			},
		},
	}
}

func TestBuildIdentityStore_MockMode(t *testing.T) {
	store, err := buildIdentityStore(identityTestConfig(config.AuthModeMock, false), &AuthContainer{})

	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestBuildIdentityStore_MissingIdentityURLOutsideDevMode(t *testing.T) {
	_, err := buildIdentityStore(identityTestConfig(config.AuthModePassword, false), &AuthContainer{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "IDENTITY_BASE_URL")
}

func TestBuildIdentityStore_DevFallbackInDevMode(t *testing.T) {
	store, err := buildIdentityStore(identityTestConfig(config.AuthModePassword, true), &AuthContainer{})

	require.NoError(t, err)
	assert.NotNil(t, store)
}

func TestBuildIdentityStore_UnknownMode(t *testing.T) {
	_, err := buildIdentityStore(identityTestConfig(config.AuthMode("ldap"), false), &AuthContainer{})

	require.Error(t, err)
}
