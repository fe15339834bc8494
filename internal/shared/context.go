package shared

import "context"

// Role names recognised by the back office.
const (
	RoleAdmin    = "admin"
	RoleEmployee = "employee"
)

// Identity is the authenticated caller as resolved from a bearer token.
type Identity struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// IsStaff reports whether the caller may use the back office.
func (i Identity) IsStaff() bool {
	return i.Role == RoleAdmin || i.Role == RoleEmployee
}

type identityContextKey struct{}

// ContextWithIdentity stores the caller identity in context.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity from context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok && id.Email != ""
}

// ActorFromContext returns the caller email used for audit columns.
func ActorFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Email
}
