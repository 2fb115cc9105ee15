package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/stmary/giftshop-backend/pkg/enums"
)

// Identity is the authenticated caller as established by Auth.
type Identity struct {
	UserID   uuid.UUID
	Role     enums.UserRole
	AccessID string
}

type identityKey struct{}

// IdentityFromContext returns the caller and whether one was set.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, id)
}

// UserIDFromContext returns the authenticated user, or uuid.Nil.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

func RoleFromContext(ctx context.Context) enums.UserRole {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

// AccessIDFromContext returns the session id carried in the token's jti.
func AccessIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.AccessID
}

// WithUser injects a caller without a session; handler tests use it.
func WithUser(ctx context.Context, userID uuid.UUID, role enums.UserRole) context.Context {
	return withIdentity(ctx, Identity{UserID: userID, Role: role})
}
