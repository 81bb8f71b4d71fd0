package supaauth

// Package supaauth implements ports.IdentityStore against a GoTrue-compatible
// identity service: password and refresh-token grants, signup, logout, and a
// change-listener registry with automatic token refresh ahead of expiry.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	"github.com/arcadis/entreprise-os/internal/ports"
)

var _ ports.IdentityStore = (*Client)(nil)

const defaultRefreshMargin = time.Minute

// Config controls the identity store client.
type Config struct {
	// BaseURL is the service root, e.g. https://project.example.co.
	BaseURL string
	// APIKey is sent in the apikey header on every request.
	APIKey string
	// JWTSecret, when set, enables HS256 signature verification of issued
	// access tokens. Without it the token's expires_in is trusted as-is.
	JWTSecret string
	// RefreshMargin is how long before expiry the token is refreshed.
	RefreshMargin time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the identity service and tracks the current session.
type Client struct {
	baseURL string
	apiKey  string
	secret  []byte
	margin  time.Duration
	http    *http.Client
	logger  *slog.Logger

	mu           sync.Mutex
	session      *tokenSession
	listeners    map[int]ports.SessionChangeFunc
	nextListener int
	refreshTimer *time.Timer
	closed       bool
}

type tokenSession struct {
	accessToken  string
	refreshToken string
	identity     domainauth.RawIdentity
}

// NewClient validates cfg and builds a Client with no current session.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("supaauth: BaseURL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("supaauth: APIKey is required")
	}
	margin := cfg.RefreshMargin
	if margin <= 0 {
		margin = defaultRefreshMargin
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		secret:    []byte(cfg.JWTSecret),
		margin:    margin,
		http:      httpClient,
		logger:    logger,
		listeners: make(map[int]ports.SessionChangeFunc),
	}, nil
}

// wire types

type tokenResponse struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type"`
	ExpiresIn    int        `json:"expires_in"`
	RefreshToken string     `json:"refresh_token"`
	User         remoteUser `json:"user"`
}

type remoteUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

type apiError struct {
	Err         string `json:"error"`
	Description string `json:"error_description"`
	Msg         string `json:"msg"`
	Message     string `json:"message"`
}

func (e apiError) text() string {
	for _, s := range []string{e.Description, e.Msg, e.Message, e.Err} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

// SignInWithPassword performs the password grant and installs the resulting
// session, notifying listeners.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.RawIdentity, error) {
	body := map[string]string{"email": email, "password": password}
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/token?grant_type=password", "", body, &resp); err != nil {
		return nil, err
	}
	identity, err := c.install(resp)
	if err != nil {
		return nil, err
	}
	c.emit(ports.IdentityEventSignedIn, &identity)
	return &identity, nil
}

// SignUp registers a new identity. When the service is configured to require
// email confirmation no session is issued; the identity is returned without
// installing one.
func (c *Client) SignUp(ctx context.Context, in ports.SignUpInput) (*domainauth.RawIdentity, error) {
	body := map[string]any{"email": in.Email, "password": in.Password}
	if len(in.Metadata) > 0 {
		body["data"] = in.Metadata
	}
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/signup", "", body, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken == "" {
		identity := identityFromUser(resp.User, time.Time{})
		return &identity, nil
	}

	identity, err := c.install(resp)
	if err != nil {
		return nil, err
	}
	c.emit(ports.IdentityEventSignedIn, &identity)
	return &identity, nil
}

// SignOut revokes the current session upstream, clears it locally, and
// notifies listeners. Revocation failures are logged; local state always
// clears.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := ""
	if c.session != nil {
		token = c.session.accessToken
	}
	c.session = nil
	c.stopRefreshLocked()
	c.mu.Unlock()

	if token != "" {
		if err := c.post(ctx, "/auth/v1/logout", token, struct{}{}, nil); err != nil {
			c.logger.WarnContext(ctx, "upstream logout failed", "error", err)
		}
	}
	c.emit(ports.IdentityEventSignedOut, nil)
	return nil
}

// CurrentSession returns the identity behind the current session, refreshing
// the token first when it is within the refresh margin of expiry. Returns
// nil with no error when there is no session.
func (c *Client) CurrentSession(ctx context.Context) (*domainauth.RawIdentity, error) {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return nil, nil
	}

	if time.Until(sess.identity.ExpiresAt) <= c.margin && sess.refreshToken != "" {
		if err := c.refresh(ctx); err != nil {
			return nil, err
		}
		c.mu.Lock()
		sess = c.session
		c.mu.Unlock()
		if sess == nil {
			return nil, nil
		}
	}

	identity := sess.identity
	return &identity, nil
}

// OnSessionChange registers a listener and returns its unsubscribe handle.
func (c *Client) OnSessionChange(fn ports.SessionChangeFunc) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Close stops the background refresh timer. The client must not be used
// afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopRefreshLocked()
}

// refresh exchanges the refresh token for a new session and notifies
// listeners. A failed refresh clears the session; the user is effectively
// signed out.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil || c.session.refreshToken == "" {
		c.mu.Unlock()
		return nil
	}
	refreshToken := c.session.refreshToken
	c.mu.Unlock()

	body := map[string]string{"refresh_token": refreshToken}
	var resp tokenResponse
	if err := c.post(ctx, "/auth/v1/token?grant_type=refresh_token", "", body, &resp); err != nil {
		c.mu.Lock()
		c.session = nil
		c.stopRefreshLocked()
		c.mu.Unlock()
		c.emit(ports.IdentityEventSignedOut, nil)
		return fmt.Errorf("refresh session: %w", err)
	}

	identity, err := c.install(resp)
	if err != nil {
		return err
	}
	c.emit(ports.IdentityEventTokenRefreshed, &identity)
	return nil
}

// install verifies the token, stores the session, and schedules the next
// refresh. Returns the composed identity.
func (c *Client) install(resp tokenResponse) (domainauth.RawIdentity, error) {
	expiresAt, err := c.tokenExpiry(resp)
	if err != nil {
		return domainauth.RawIdentity{}, err
	}
	identity := identityFromUser(resp.User, expiresAt)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domainauth.RawIdentity{}, errors.New("supaauth: client is closed")
	}
	c.session = &tokenSession{
		accessToken:  resp.AccessToken,
		refreshToken: resp.RefreshToken,
		identity:     identity,
	}
	c.scheduleRefreshLocked(expiresAt)
	c.mu.Unlock()

	return identity, nil
}

// tokenExpiry determines when the access token expires. With a configured
// secret the token signature and exp claim are verified; otherwise
// expires_in is trusted.
func (c *Client) tokenExpiry(resp tokenResponse) (time.Time, error) {
	if len(c.secret) == 0 {
		if resp.ExpiresIn <= 0 {
			return time.Time{}, errors.New("supaauth: token response missing expires_in")
		}
		return time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second), nil
	}

	parsed, err := jwt.Parse(resp.AccessToken, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return time.Time{}, fmt.Errorf("verify access token: %w", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}, errors.New("supaauth: unexpected token claims")
	}
	if sub, _ := claims.GetSubject(); sub != "" && resp.User.ID != "" && sub != resp.User.ID {
		return time.Time{}, errors.New("supaauth: token subject does not match user")
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, errors.New("supaauth: token missing exp claim")
	}
	return exp.Time, nil
}

// scheduleRefreshLocked arms the refresh timer for margin before expiry.
// Caller holds c.mu.
func (c *Client) scheduleRefreshLocked(expiresAt time.Time) {
	c.stopRefreshLocked()
	d := time.Until(expiresAt) - c.margin
	if d <= 0 {
		d = time.Second
	}
	c.refreshTimer = time.AfterFunc(d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.refresh(ctx); err != nil {
			c.logger.Warn("background token refresh failed", "error", err)
		}
	})
}

func (c *Client) stopRefreshLocked() {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
}

// emit notifies listeners outside the lock, in registration-independent
// order.
func (c *Client) emit(event ports.IdentityEvent, identity *domainauth.RawIdentity) {
	c.mu.Lock()
	fns := make([]ports.SessionChangeFunc, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(event, identity)
	}
}

// post sends a JSON request. bearer overrides the API key in the
// Authorization header; out may be nil when the body is irrelevant.
func (c *Client) post(ctx context.Context, path, bearer string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity store request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if jsonErr := json.Unmarshal(data, &apiErr); jsonErr != nil {
			return fmt.Errorf("identity store: status %d", resp.StatusCode)
		}
		return fmt.Errorf("identity store: %s", apiErr.text())
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func identityFromUser(u remoteUser, expiresAt time.Time) domainauth.RawIdentity {
	return domainauth.RawIdentity{
		ID:        u.ID,
		Email:     u.Email,
		Metadata:  u.UserMetadata,
		ExpiresAt: expiresAt,
	}
}
