package auth

import (
	"context"
	"strings"
	"time"
)

// Identity is the principal a request acts for. Conversion history is keyed
// by UID.
type Identity struct {
	UID       string
	Email     string
	Anonymous bool
	// Provider is the Firebase sign-in provider, e.g. "password" or "google.com".
	Provider string
	IssuedAt time.Time
}

type identityKey struct{}

// WithIdentity attaches identity to ctx.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity attached by RequireUser.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(*Identity)
	return identity, ok && identity != nil
}

// OwnerFromContext returns the UID history is scoped to, or "" when the
// request carries no usable identity.
func OwnerFromContext(ctx context.Context) string {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ""
	}
	return strings.TrimSpace(identity.UID)
}
