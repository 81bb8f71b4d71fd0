package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode represents the authentication mode for the application.
type AuthMode string

const (
	// AuthModePassword authenticates against the hosted identity API with
	// email and password.
	AuthModePassword AuthMode = "password"
	// AuthModeSSO uses redirect-based OIDC sign-in.
	AuthModeSSO AuthMode = "sso"
	// AuthModeMock uses mock/dev authentication (for development only).
	AuthModeMock AuthMode = "mock"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "password", "sso", "mock":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: password, sso, mock)", v)
	}
}

// IdentityAPIConfig points at the hosted identity service used in
// password mode.
type IdentityAPIConfig struct {
	BaseURL string `env:"BASE_URL"`
	APIKey  string `env:"API_KEY"`
	// JWTSecret enables local HS256 verification of issued access tokens.
	// Leave empty to trust the provider's expires_in instead.
	JWTSecret string `env:"JWT_SECRET"`
	// RefreshMargin is how long before token expiry a refresh is attempted.
	RefreshMargin time.Duration `env:"REFRESH_MARGIN" envDefault:"1m"`
}

// OIDCConfig contains the SSO provider configuration (used when Mode=sso).
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid email profile"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// DevAuthConfig controls mock/dev authentication identity.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	UserID   string `env:"USER_ID"  envDefault:"dev-user"`
	Email    string `env:"EMAIL"    envDefault:"dev@arcadis.local"`
	Password string `env:"PASSWORD" envDefault:""`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity backend to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"password"`

	// Identity API configuration (used when Mode=password).
	Identity IdentityAPIConfig `envPrefix:"IDENTITY_"`

	// OIDC configuration (used when Mode=sso).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`

	// SessionTTL bounds how long a server-side session lives.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// LoginRatePerMinute throttles sign-in attempts per email.
	// Zero disables throttling.
	LoginRatePerMinute int `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`

	// LoginBurst is the per-email burst allowance.
	LoginBurst int `env:"LOGIN_BURST" envDefault:"5"`
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.SessionTTL <= 0 {
		a.SessionTTL = 24 * time.Hour
	}
	if a.LoginRatePerMinute < 0 {
		a.LoginRatePerMinute = 0
	}
	if a.LoginBurst < 1 {
		a.LoginBurst = 1
	}
}
