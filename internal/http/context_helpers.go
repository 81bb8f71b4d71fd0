package httpx

import (
	"context"

	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
)

// principalKey is an unexported context key type to avoid collisions across
// packages. Centralized here so all handlers and middleware use the same key.
type principalKey struct{}

// SetPrincipalInContext returns a child context carrying the principal.
func SetPrincipalInContext(ctx context.Context, p *domainauth.Principal) context.Context {
	if p == nil {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal from context and whether one is
// present.
func PrincipalFromContext(ctx context.Context) (*domainauth.Principal, bool) {
	if p, ok := ctx.Value(principalKey{}).(*domainauth.Principal); ok && p != nil {
		return p, true
	}
	return nil, false
}

// RoleFromContext returns the effective role of the request, falling back to
// the default role when no principal is present.
func RoleFromContext(ctx context.Context) domainauth.Role {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.EffectiveRole()
	}
	return domainauth.DefaultRole
}
