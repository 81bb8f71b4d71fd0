package session

// Package session owns the session lifecycle state: it merges identity
// events from the external identity store with profile lookups and publishes
// the single authoritative tri-state value consumed by the route guard and
// the navigation builder.

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	apperrors "github.com/arcadis/entreprise-os/internal/errors"
	"github.com/arcadis/entreprise-os/internal/ports"
)

// Options groups dependencies for the Composer. Both stores are required;
// constructing a composer without them is a wiring bug, not a runtime
// condition.
type Options struct {
	Identity ports.IdentityStore
	Profiles ports.ProfileResolver
	Logger   *slog.Logger
}

// Composer is the single writer of the session lifecycle state. Two
// asynchronous entry points feed it — the initial session fetch (Bootstrap)
// and the identity store's change subscription — and both funnel through the
// same derivation. A monotonic sequence number taken at trigger time makes
// the most recently triggered event win regardless of completion order.
type Composer struct {
	identity ports.IdentityStore
	profiles ports.ProfileResolver
	logger   *slog.Logger

	mu           sync.Mutex
	seq          uint64
	publishedSeq uint64
	state        domainauth.State
	watchers     map[int]chan domainauth.State
	nextWatcher  int
	unsubscribe  func()
	closed       bool
}

// New constructs a Composer in the loading state.
func New(opts Options) (*Composer, error) {
	if opts.Identity == nil {
		return nil, errors.New("session composer: identity store is required")
	}
	if opts.Profiles == nil {
		return nil, errors.New("session composer: profile resolver is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		identity: opts.Identity,
		profiles: opts.Profiles,
		logger:   logger,
		state:    domainauth.Loading(),
		watchers: make(map[int]chan domainauth.State),
	}, nil
}

// Start subscribes to session-change notifications and performs the initial
// session fetch. The subscription and the fetch race; the sequence rule in
// publish keeps whichever was triggered last.
func (c *Composer) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.unsubscribe == nil {
		c.unsubscribe = c.identity.OnSessionChange(func(event ports.IdentityEvent, identity *domainauth.RawIdentity) {
			c.logger.DebugContext(ctx, "session change received", "event", string(event))
			c.Apply(ctx, identity)
		})
	}
	c.mu.Unlock()

	c.Bootstrap(ctx)
}

// Bootstrap is the initial-fetch entry point: it asks the identity store for
// the current session and applies the result. A fetch error is treated as no
// session rather than surfaced; there is nobody upstream to recover it.
func (c *Composer) Bootstrap(ctx context.Context) {
	identity, err := c.identity.CurrentSession(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "initial session fetch failed", "error", err)
		identity = nil
	}
	c.Apply(ctx, identity)
}

// Apply derives and publishes a state for one triggering event. A nil
// identity publishes unauthenticated; otherwise the profile is resolved and
// merged. Exactly one publish is attempted per call.
func (c *Composer) Apply(ctx context.Context, identity *domainauth.RawIdentity) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	if identity == nil {
		c.publish(seq, domainauth.Unauthenticated())
		return
	}

	principal := c.derive(ctx, *identity)
	c.publish(seq, domainauth.Authenticated(principal))
}

// derive resolves the profile and composes the principal. A failed or empty
// lookup still yields an authenticated principal from identity fields alone:
// identity is sufficient to consider the user signed in pending profile
// availability.
func (c *Composer) derive(ctx context.Context, identity domainauth.RawIdentity) domainauth.Principal {
	profile, err := c.profiles.ProfileByUserID(ctx, identity.ID)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			c.logger.WarnContext(ctx, "profile lookup failed, composing from identity only",
				"user_id", identity.ID, "error", err)
		}
		profile = nil
	}
	return domainauth.ComposePrincipal(identity, profile)
}

// publish installs the state for event seq unless a more recent event has
// already published. Stale completions are dropped, which is what enforces
// last-write-wins by trigger recency rather than completion order.
func (c *Composer) publish(seq uint64, state domainauth.State) {
	c.mu.Lock()
	if c.closed || seq < c.publishedSeq {
		c.mu.Unlock()
		return
	}
	c.publishedSeq = seq
	c.state = state
	watchers := make([]chan domainauth.State, 0, len(c.watchers))
	for _, ch := range c.watchers {
		watchers = append(watchers, ch)
	}
	c.mu.Unlock()

	for _, ch := range watchers {
		offerLatest(ch, state)
	}
}

// offerLatest delivers state without blocking; when the watcher is behind,
// the stale buffered value is replaced so readers always see the newest.
func offerLatest(ch chan domainauth.State, state domainauth.State) {
	select {
	case ch <- state:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- state:
	default:
	}
}

// State returns the current lifecycle state snapshot.
func (c *Composer) State() domainauth.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Watch registers a state watcher. The returned channel carries the latest
// state (buffered, latest-wins); the cancel func removes the watcher.
func (c *Composer) Watch() (<-chan domainauth.State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextWatcher
	c.nextWatcher++
	ch := make(chan domainauth.State, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.watchers[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.watchers[id]; ok {
			delete(c.watchers, id)
			close(ch)
		}
	}
}

// Close releases the identity store subscription and closes all watchers.
// Further events are ignored.
func (c *Composer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	watchers := c.watchers
	c.watchers = make(map[int]chan domainauth.State)
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	for _, ch := range watchers {
		close(ch)
	}
}
