// Package cli holds the operator commands of the backoffice binary.
package cli

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/stonecrest/backoffice/internal/auth"
	"github.com/stonecrest/backoffice/internal/shared"
)

// TokenCLI issues and revokes API bearer tokens.
type TokenCLI struct {
	store *auth.TokenStore
	ttl   time.Duration
}

// NewTokenCLI wraps store; ttl applies when Issue is given none.
func NewTokenCLI(store *auth.TokenStore, ttl time.Duration) *TokenCLI {
	return &TokenCLI{store: store, ttl: ttl}
}

// Issue creates a token for a staff member.
func (c *TokenCLI) Issue(ctx context.Context, email, role string, ttl time.Duration) (string, error) {
	if c == nil || c.store == nil {
		return "", errors.New("token cli: store not configured")
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	id := shared.Identity{Email: email, Role: strings.ToLower(strings.TrimSpace(role))}
	return c.store.Issue(ctx, id, ttl)
}

// Revoke deletes a token.
func (c *TokenCLI) Revoke(ctx context.Context, token string) error {
	if c == nil || c.store == nil {
		return errors.New("token cli: store not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token cli: token required")
	}
	return c.store.Revoke(ctx, token)
}
