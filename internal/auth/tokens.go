// Package auth resolves bearer tokens to caller identities and gates routes
// by role. Token issuance lives outside the API (see cmd/backoffice token).
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stonecrest/backoffice/internal/shared"
)

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (shared.Identity, error)
}

// TokenStore keeps opaque API tokens in Redis. Only a SHA-256 digest of each
// token is stored.
type TokenStore struct {
	client *redis.Client
	prefix string
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client, prefix: "auth:token:"}
}

// Issue creates a token for identity valid for ttl (0 means no expiry).
func (s *TokenStore) Issue(ctx context.Context, id shared.Identity, ttl time.Duration) (string, error) {
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	if id.Email == "" {
		return "", errors.New("auth: email required")
	}
	if !id.IsStaff() {
		return "", fmt.Errorf("auth: unsupported role %q", id.Role)
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	payload, err := json.Marshal(id)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(token), payload, ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store token: %w", err)
	}
	return token, nil
}

// Verify implements Verifier.
func (s *TokenStore) Verify(ctx context.Context, token string) (shared.Identity, error) {
	if token == "" {
		return shared.Identity{}, shared.ErrUnauthorized
	}
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Identity{}, shared.ErrUnauthorized
		}
		return shared.Identity{}, fmt.Errorf("auth: lookup token: %w: %w", shared.ErrUnavailable, err)
	}
	var id shared.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		return shared.Identity{}, shared.ErrUnauthorized
	}
	return id, nil
}

// Revoke deletes a token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.key(token)).Err()
}

func (s *TokenStore) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + hex.EncodeToString(sum[:])
}
