package auth

import "time"

// Phase is the session lifecycle phase consumed by every access-control
// decision. Consumers must never treat PhaseLoading as unauthenticated:
// doing so causes a premature redirect while the initial session fetch is
// still in flight.
type Phase string

const (
	PhaseLoading         Phase = "loading"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseAuthenticated   Phase = "authenticated"
)

// State is the tri-state session lifecycle value. Principal is non-nil iff
// Phase is PhaseAuthenticated; the "no principal" case is an explicit nil,
// never a partially-filled value.
type State struct {
	Phase     Phase
	Principal *Principal
}

// Loading returns the initial, not-yet-resolved state.
func Loading() State { return State{Phase: PhaseLoading} }

// Unauthenticated returns the no-session state.
func Unauthenticated() State { return State{Phase: PhaseUnauthenticated} }

// Authenticated returns the state carrying the composed principal.
func Authenticated(p Principal) State {
	return State{Phase: PhaseAuthenticated, Principal: &p}
}

// SessionStatus marks whether a server-side session record is fully
// composed or still resolving its profile.
type SessionStatus string

const (
	SessionPending SessionStatus = "pending"
	SessionActive  SessionStatus = "active"
)

// Session is the server-side record persisted for an authenticated user.
// ID is an opaque identifier bound to the client via cookie.
type Session struct {
	ID        string        `json:"id"`
	Status    SessionStatus `json:"status"`
	Principal Principal     `json:"principal"`
	ExpiresAt time.Time     `json:"expires_at"`
}
