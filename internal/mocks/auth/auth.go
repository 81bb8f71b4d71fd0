package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	apperrors "github.com/arcadis/entreprise-os/internal/errors"
	"github.com/arcadis/entreprise-os/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityStore      = (*MemoryIdentityStore)(nil)
	_ ports.ProfileResolver    = (*StubProfileResolver)(nil)
	_ ports.ProfileResolver    = (ProfileResolverFunc)(nil)
	_ ports.SessionStore       = (*MemorySessionStore)(nil)
	_ ports.LoginAuditRecorder = (*MemoryLoginAudit)(nil)
	_ ports.AuthProvider       = (*MockAuthProvider)(nil)
)

// ErrInvalidCredentials mirrors the upstream identity provider's rejection
// text so credential-mapping logic can be exercised against it.
var ErrInvalidCredentials = errors.New("invalid login credentials")

type memUser struct {
	password string
	identity domainauth.RawIdentity
}

// MemoryIdentityStore is an in-memory identity store. Tests seed users with
// Register, drive change notifications with Emit, and inject failures via
// the exported error fields.
type MemoryIdentityStore struct {
	mu           sync.Mutex
	users        map[string]memUser
	current      *domainauth.RawIdentity
	listeners    map[int]ports.SessionChangeFunc
	nextListener int

	CurrentSessionErr error
	SignInErr         error
	SignUpErr         error
	SignOutErr        error
}

// NewMemoryIdentityStore creates an empty store with no current session.
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{
		users:     make(map[string]memUser),
		listeners: make(map[int]ports.SessionChangeFunc),
	}
}

// Register seeds a user that can sign in with the given password.
func (m *MemoryIdentityStore) Register(email, password string, identity domainauth.RawIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[email] = memUser{password: password, identity: identity}
}

// SetCurrent installs the current session without firing listeners.
func (m *MemoryIdentityStore) SetCurrent(identity *domainauth.RawIdentity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = identity
}

func (m *MemoryIdentityStore) CurrentSession(_ context.Context) (*domainauth.RawIdentity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CurrentSessionErr != nil {
		return nil, m.CurrentSessionErr
	}
	return m.current, nil
}

func (m *MemoryIdentityStore) OnSessionChange(fn ports.SessionChangeFunc) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// ListenerCount reports registered listeners; used to assert unsubscribe.
func (m *MemoryIdentityStore) ListenerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Emit sets the current session and notifies listeners synchronously.
func (m *MemoryIdentityStore) Emit(event ports.IdentityEvent, identity *domainauth.RawIdentity) {
	m.mu.Lock()
	m.current = identity
	fns := make([]ports.SessionChangeFunc, 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(event, identity)
	}
}

func (m *MemoryIdentityStore) SignInWithPassword(_ context.Context, email, password string) (*domainauth.RawIdentity, error) {
	m.mu.Lock()
	if m.SignInErr != nil {
		err := m.SignInErr
		m.mu.Unlock()
		return nil, err
	}
	u, ok := m.users[email]
	m.mu.Unlock()
	if !ok || u.password != password {
		return nil, ErrInvalidCredentials
	}
	identity := u.identity
	m.Emit(ports.IdentityEventSignedIn, &identity)
	return &identity, nil
}

func (m *MemoryIdentityStore) SignUp(_ context.Context, in ports.SignUpInput) (*domainauth.RawIdentity, error) {
	m.mu.Lock()
	if m.SignUpErr != nil {
		err := m.SignUpErr
		m.mu.Unlock()
		return nil, err
	}
	if _, exists := m.users[in.Email]; exists {
		m.mu.Unlock()
		return nil, errors.New("user already registered")
	}
	identity := domainauth.RawIdentity{
		ID:        fmt.Sprintf("mem-user-%d", len(m.users)+1),
		Email:     in.Email,
		Metadata:  in.Metadata,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	m.users[in.Email] = memUser{password: in.Password, identity: identity}
	m.mu.Unlock()
	m.Emit(ports.IdentityEventSignedIn, &identity)
	return &identity, nil
}

func (m *MemoryIdentityStore) SignOut(_ context.Context) error {
	m.mu.Lock()
	if m.SignOutErr != nil {
		err := m.SignOutErr
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()
	m.Emit(ports.IdentityEventSignedOut, nil)
	return nil
}

// StubProfileResolver serves profiles from a map keyed by user ID. A missing
// entry yields NotFound; Err, when set, overrides everything.
type StubProfileResolver struct {
	mu       sync.Mutex
	Profiles map[string]*domainauth.ProfileRecord
	Err      error
	calls    int
}

func NewStubProfileResolver(profiles ...*domainauth.ProfileRecord) *StubProfileResolver {
	s := &StubProfileResolver{Profiles: make(map[string]*domainauth.ProfileRecord)}
	for _, p := range profiles {
		s.Profiles[p.UserID] = p
	}
	return s
}

func (s *StubProfileResolver) ProfileByUserID(_ context.Context, userID string) (*domainauth.ProfileRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.Profiles[userID]
	if !ok {
		return nil, apperrors.NotFoundf("profile %s not found", userID)
	}
	return p, nil
}

// Calls reports how many lookups were made.
func (s *StubProfileResolver) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ProfileResolverFunc adapts a function to ports.ProfileResolver, for tests
// that need per-call behavior such as controlled blocking.
type ProfileResolverFunc func(ctx context.Context, userID string) (*domainauth.ProfileRecord, error)

func (f ProfileResolverFunc) ProfileByUserID(ctx context.Context, userID string) (*domainauth.ProfileRecord, error) {
	return f(ctx, userID)
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session

	SaveErr error
	GetErr  error
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domainauth.Session)}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return domainauth.Session{}, m.GetErr
	}
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, apperrors.NotFound("session not found")
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MemoryLoginAudit collects audit entries in memory.
type MemoryLoginAudit struct {
	mu      sync.Mutex
	entries []domainauth.LoginAuditEntry

	RecordErr error
}

func NewMemoryLoginAudit() *MemoryLoginAudit { return &MemoryLoginAudit{} }

func (m *MemoryLoginAudit) Record(_ context.Context, entry domainauth.LoginAuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryLoginAudit) ListRecent(_ context.Context, limit int) ([]domainauth.LoginAuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domainauth.LoginAuditEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

// Entries returns a copy of all recorded entries in insertion order.
func (m *MemoryLoginAudit) Entries() []domainauth.LoginAuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domainauth.LoginAuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}

// MockAuthProvider simulates an SSO IdP with deterministic state/nonce
// handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, redirectURL string) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.RawIdentity, error)

	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainauth.RawIdentity

	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: domainauth.RawIdentity{
			ID:        "mock-user-1",
			Email:     "mock.user@example.com",
			ExpiresAt: time.Now().Add(time.Hour),
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, redirectURL string) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, redirectURL)
	}

	m.callCount++
	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	state := fmt.Sprintf("%s-%d", statePrefix, m.callCount)
	nonce := fmt.Sprintf("%s-%d", noncePrefix, m.callCount)

	return authURL, state, nonce, nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.RawIdentity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}

	user := m.DefaultUser
	if user.ID == "" {
		user = domainauth.RawIdentity{
			ID:    "mock-user-1",
			Email: "mock.user@example.com",
		}
	}
	user.ExpiresAt = time.Now().Add(time.Hour)
	return user, nil
}
