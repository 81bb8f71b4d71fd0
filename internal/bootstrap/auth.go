package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/arcadis/entreprise-os/config"
	"github.com/arcadis/entreprise-os/internal/adapters/devauth"
	"github.com/arcadis/entreprise-os/internal/adapters/oidc"
	redisadapter "github.com/arcadis/entreprise-os/internal/adapters/redis"
	"github.com/arcadis/entreprise-os/internal/adapters/supaauth"
	"github.com/arcadis/entreprise-os/internal/data"
	"github.com/arcadis/entreprise-os/internal/observability/metrics"
	"github.com/arcadis/entreprise-os/internal/ports"
	"github.com/arcadis/entreprise-os/internal/service"
	"github.com/arcadis/entreprise-os/internal/session"
)

// AuthConfig contains the dependencies for building the auth stack.
type AuthConfig struct {
	Auth config.AuthConfig
	// IsDev permits the dev-auth fallback when no identity service is
	// configured. Outside dev mode a missing identity service is a
	// configuration error.
	IsDev       bool
	BaseURL     string
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Registry    *prometheus.Registry
	Logger      *slog.Logger
}

// AuthContainer bundles the constructed auth components.
type AuthContainer struct {
	Identity ports.IdentityStore
	Provider ports.AuthProvider
	Sessions *redisadapter.SessionStore
	Profiles *data.ProfileRepo
	Audit    *data.LoginAuditRepo
	Service  *service.AuthService
	Composer *session.Composer

	// closers for identity stores holding background resources
	closers []func()
}

// Close releases background resources held by the container.
func (c *AuthContainer) Close() {
	if c.Composer != nil {
		c.Composer.Close()
	}
	for _, fn := range c.closers {
		fn()
	}
}

// BuildAuth wires the identity store for the configured mode, the session
// store, the profile and audit repositories, the auth service, and the
// session composer.
func BuildAuth(cfg AuthConfig) (*AuthContainer, error) {
	container := &AuthContainer{}

	identity, err := buildIdentityStore(cfg, container)
	if err != nil {
		return nil, err
	}
	container.Identity = identity

	if cfg.Auth.Mode == config.AuthModeSSO {
		provider, provErr := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			RedirectURL:  cfg.BaseURL + "/auth/callback",
			Scope:        cfg.Auth.OIDC.Scope,
			DiscoveryURL: cfg.Auth.OIDC.DiscoveryURL,
		})
		if provErr != nil {
			return nil, fmt.Errorf("build oidc provider: %w", provErr)
		}
		container.Provider = provider
	}

	container.Sessions = redisadapter.NewSessionStore(cfg.RedisClient)
	container.Profiles = data.NewProfileRepo(cfg.DB)
	container.Audit = data.NewLoginAuditRepo(cfg.DB)

	var authMetrics *metrics.AuthMetrics
	if cfg.Registry != nil {
		authMetrics = metrics.NewAuthMetrics(cfg.Registry)
	}

	var loginRate rate.Limit
	if cfg.Auth.LoginRatePerMinute > 0 {
		loginRate = rate.Every(time.Minute / time.Duration(cfg.Auth.LoginRatePerMinute))
	}

	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Identity:   container.Identity,
		Profiles:   container.Profiles,
		Sessions:   container.Sessions,
		Audit:      container.Audit,
		Metrics:    authMetrics,
		Logger:     cfg.Logger,
		SessionTTL: cfg.Auth.SessionTTL,
		LoginRate:  loginRate,
		LoginBurst: cfg.Auth.LoginBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("build auth service: %w", err)
	}
	container.Service = svc

	composer, err := session.New(session.Options{
		Identity: container.Identity,
		Profiles: container.Profiles,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build session composer: %w", err)
	}
	container.Composer = composer

	return container, nil
}

//nolint:ireturn // mode selection decides the concrete identity store at runtime.
func buildIdentityStore(cfg AuthConfig, container *AuthContainer) (ports.IdentityStore, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		return buildDevStore(cfg)

	case config.AuthModePassword, config.AuthModeSSO:
		if cfg.Auth.Identity.BaseURL == "" {
			if !cfg.IsDev {
				return nil, fmt.Errorf("auth mode %q requires IDENTITY_BASE_URL outside dev mode", cfg.Auth.Mode)
			}
			// Dev fallback so the app still runs without a hosted identity
			// service configured.
			if cfg.Logger != nil {
				cfg.Logger.Warn("identity service not configured, falling back to dev auth",
					"mode", string(cfg.Auth.Mode))
			}
			return buildDevStore(cfg)
		}
		client, err := supaauth.NewClient(supaauth.Config{
			BaseURL:       cfg.Auth.Identity.BaseURL,
			APIKey:        cfg.Auth.Identity.APIKey,
			JWTSecret:     cfg.Auth.Identity.JWTSecret,
			RefreshMargin: cfg.Auth.Identity.RefreshMargin,
			Logger:        cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build identity client: %w", err)
		}
		container.closers = append(container.closers, client.Close)
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

//nolint:ireturn // see buildIdentityStore.
func buildDevStore(cfg AuthConfig) (ports.IdentityStore, error) {
	store, err := devauth.NewStore(devauth.Config{
		UserID:   cfg.Auth.DevAuth.UserID,
		Email:    cfg.Auth.DevAuth.Email,
		Password: cfg.Auth.DevAuth.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("build dev auth store: %w", err)
	}
	return store, nil
}
