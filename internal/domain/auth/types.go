package auth

// Package auth contains domain-level types for identity, profiles, and the
// session lifecycle. It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleHRManager Role = "hr_manager"
	RoleClient    Role = "client"
)

// DefaultRole is the role assumed when a principal's role is absent or
// unresolved. Deliberately fail-open to the least-privileged tier rather
// than hiding everything behind an unresolved lookup.
const DefaultRole = RoleClient

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleHRManager, RoleClient:
		return true
	}
	return false
}

// RawIdentity is the minimal identity issued by the external identity store.
// It is immutable once issued for a given session and replaced wholesale on
// re-authentication.
type RawIdentity struct {
	ID        string
	Email     string
	Metadata  map[string]any // provider-issued claims, opaque to the app
	ExpiresAt time.Time      // absolute expiry of the backing access token
}

// ProfileRecord holds the tenant-specific attributes stored in the
// application's own data store. A record may legitimately be absent for a
// freshly signed-up identity.
type ProfileRecord struct {
	UserID    string     `db:"user_id"    json:"user_id"`
	Role      Role       `db:"role"       json:"role"`
	FirstName string     `db:"first_name" json:"first_name"`
	LastName  string     `db:"last_name"  json:"last_name"`
	CompanyID string     `db:"company_id" json:"company_id"`
	IsActive  bool       `db:"is_active"  json:"is_active"`
	DeletedAt *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// Deleted reports whether the profile has been soft-deleted.
func (p *ProfileRecord) Deleted() bool { return p != nil && p.DeletedAt != nil }

// Principal is the composed, authoritative representation of an
// authenticated user: identity fields merged with resolved profile fields.
// Profile-derived fields are zero when the lookup failed or returned no row.
type Principal struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	CompanyID string    `json:"company_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EffectiveRole returns the principal's role, or DefaultRole when the
// profile never resolved.
func (p Principal) EffectiveRole() Role {
	if p.Role == "" {
		return DefaultRole
	}
	return p.Role
}

// ComposePrincipal is the single derivation merging a raw identity with an
// optionally resolved profile. Every code path that produces a Principal
// must go through it so that the initial session fetch and the ongoing
// change subscription cannot diverge.
func ComposePrincipal(identity RawIdentity, profile *ProfileRecord) Principal {
	p := Principal{
		ID:        identity.ID,
		Email:     identity.Email,
		ExpiresAt: identity.ExpiresAt,
	}
	if profile == nil {
		return p
	}
	p.Role = profile.Role
	p.FirstName = profile.FirstName
	p.LastName = profile.LastName
	p.CompanyID = profile.CompanyID
	return p
}
