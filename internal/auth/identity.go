package auth

import (
	"context"

	"venuly/internal/apperr"
	"venuly/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID string
	Role   models.Role
	Email  string
	Name   string
}

func (i *Identity) IsAdmin() bool { return i != nil && i.Role == models.RoleAdmin }

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext returns nil for anonymous requests.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// UserID is "" for anonymous requests.
func UserID(ctx context.Context) string {
	if id := FromContext(ctx); id != nil {
		return id.UserID
	}
	return ""
}

// RequireAuth admits any authenticated, active user.
func RequireAuth(ctx context.Context) (*Identity, error) {
	id := FromContext(ctx)
	if id == nil {
		return nil, apperr.ErrUnauthorized
	}
	return id, nil
}

// RequireRole admits only callers holding exactly role.
func RequireRole(ctx context.Context, role models.Role) (*Identity, error) {
	id, err := RequireAuth(ctx)
	if err != nil {
		return nil, err
	}
	if id.Role != role {
		return nil, apperr.Forbidden(roleReason(role))
	}
	return id, nil
}

// RequireOwnerOrAdmin passes when id owns the resource or is an admin.
func RequireOwnerOrAdmin(id *Identity, ownerID string) error {
	if id == nil {
		return apperr.ErrUnauthorized
	}
	if id.UserID == ownerID || id.IsAdmin() {
		return nil
	}
	return apperr.Forbidden("you do not own this resource")
}

func roleReason(role models.Role) string {
	switch role {
	case models.RoleClient:
		return "clients only"
	case models.RoleOrganizer:
		return "organizers only"
	case models.RoleAdmin:
		return "admins only"
	default:
		return "insufficient role"
	}
}
