package devauth

// Package devauth provides a config-driven identity store for local
// development. It accepts a single configured user and never talks to the
// network.

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	"github.com/arcadis/entreprise-os/internal/ports"
)

var _ ports.IdentityStore = (*Store)(nil)

// Config controls the dev identity store. UserID and Email are required; an
// empty Password accepts any password.
type Config struct {
	UserID          string
	Email           string
	Password        string
	SessionDuration time.Duration // default 8h when zero
}

// Store implements ports.IdentityStore for local development.
type Store struct {
	cfg Config

	mu           sync.Mutex
	current      *domainauth.RawIdentity
	listeners    map[int]ports.SessionChangeFunc
	nextListener int
}

// NewStore constructs a dev identity store from Config.
func NewStore(cfg Config) (*Store, error) {
	if cfg.UserID == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	if cfg.Email == "" {
		return nil, errors.New("dev auth: Email is required")
	}
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = 8 * time.Hour
	}
	return &Store{
		cfg:       cfg,
		listeners: make(map[int]ports.SessionChangeFunc),
	}, nil
}

func (s *Store) CurrentSession(_ context.Context) (*domainauth.RawIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil, nil
	}
	if time.Now().After(s.current.ExpiresAt) {
		s.current = nil
		return nil, nil
	}
	identity := *s.current
	return &identity, nil
}

func (s *Store) OnSessionChange(fn ports.SessionChangeFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) SignInWithPassword(_ context.Context, email, password string) (*domainauth.RawIdentity, error) {
	if email != s.cfg.Email || (s.cfg.Password != "" && password != s.cfg.Password) {
		return nil, errors.New("invalid login credentials")
	}

	identity := domainauth.RawIdentity{
		ID:        s.cfg.UserID,
		Email:     s.cfg.Email,
		ExpiresAt: time.Now().Add(s.cfg.SessionDuration),
	}

	s.mu.Lock()
	s.current = &identity
	s.mu.Unlock()

	s.emit(ports.IdentityEventSignedIn, &identity)
	return &identity, nil
}

// SignUp issues an ephemeral identity for the given email. Useful for
// walking the signup flow locally without a hosted identity service.
func (s *Store) SignUp(_ context.Context, in ports.SignUpInput) (*domainauth.RawIdentity, error) {
	id, err := randomString(16)
	if err != nil {
		return nil, err
	}
	identity := domainauth.RawIdentity{
		ID:        "dev-" + id,
		Email:     in.Email,
		Metadata:  in.Metadata,
		ExpiresAt: time.Now().Add(s.cfg.SessionDuration),
	}

	s.mu.Lock()
	s.current = &identity
	s.mu.Unlock()

	s.emit(ports.IdentityEventSignedIn, &identity)
	return &identity, nil
}

func (s *Store) SignOut(_ context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
	s.emit(ports.IdentityEventSignedOut, nil)
	return nil
}

func (s *Store) emit(event ports.IdentityEvent, identity *domainauth.RawIdentity) {
	s.mu.Lock()
	fns := make([]ports.SessionChangeFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(event, identity)
	}
}

func randomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}
	bLen := (n*3 + 3) / 4
	b := make([]byte, bLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := base64.RawURLEncoding.EncodeToString(b)
	if len(s) < n {
		return s, nil
	}
	return s[:n], nil
}
