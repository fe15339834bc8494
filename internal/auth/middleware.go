package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/stonecrest/backoffice/internal/platform/httpx"
	"github.com/stonecrest/backoffice/internal/shared"
)

// Authenticate resolves the bearer token and rejects callers that are not
// back-office staff.
func Authenticate(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, shared.ErrUnauthorized) {
					httpx.Fail(w, http.StatusUnauthorized, "Authentication required", nil)
					return
				}
				if logger != nil {
					logger.Error("verify token", slog.Any("error", err))
				}
				httpx.Fail(w, http.StatusInternalServerError, "Service temporarily unavailable, please retry", nil)
				return
			}
			if !id.IsStaff() {
				httpx.Fail(w, http.StatusForbidden, "Insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole allows the request through when the caller holds one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.Fail(w, http.StatusUnauthorized, "Authentication required", nil)
				return
			}
			if _, ok := allowed[id.Role]; !ok {
				httpx.Fail(w, http.StatusForbidden, "Insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
