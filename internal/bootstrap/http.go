package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arcadis/entreprise-os/config"
	"github.com/arcadis/entreprise-os/internal/adapters/aifunc"
	httpx "github.com/arcadis/entreprise-os/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Auth     *AuthContainer
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil || cfg.Auth == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Auth:         cfg.Auth.Service,
		Sessions:     cfg.Auth.Sessions,
		Profiles:     cfg.Auth.Profiles,
		Audit:        cfg.Auth.Audit,
		Provider:     cfg.Auth.Provider,
		States:       processStateSource(cfg.Auth),
		Assistant:    buildAssistant(appCfg.AI, logger),
		Metrics:      cfg.Registry,
		BaseURL:      appCfg.HTTP.BaseURL,
		CookieDomain: appCfg.HTTP.CookieDomain,
		Logger:       logger,
	})

	return startServer(logger, handler, appCfg.HTTP.Addr)
}

// processStateSource avoids handing the router a typed-nil interface when no
// composer was built.
//
//nolint:ireturn // optional interface wiring.
func processStateSource(auth *AuthContainer) httpx.ProcessStateSource {
	if auth.Composer == nil {
		return nil
	}
	return auth.Composer
}

func buildAssistant(cfg config.AIConfig, logger *slog.Logger) *aifunc.Invoker {
	if cfg.BaseURL == "" {
		return nil
	}
	invoker, err := aifunc.NewInvoker(aifunc.Config{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Warn("assistant disabled", "error", err)
		return nil
	}
	return invoker
}

func startServer(logger *slog.Logger, handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}

	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}

	return nil
}
