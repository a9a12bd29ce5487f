package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sells-group/roofing-insights/internal/insight"
)

type ctxKey int

const identityKey ctxKey = iota

// IdentityProvider resolves a bearer token to an identity. It returns nil
// for unknown tokens.
type IdentityProvider interface {
	Identify(ctx context.Context, token string) *insight.Identity
}

// TokenIdentity is one configured API token.
type TokenIdentity struct {
	Token  string
	UserID string
	OrgID  string
}

// StaticTokens is an IdentityProvider backed by a fixed token table.
type StaticTokens []TokenIdentity

// Identify compares token against every entry in constant time.
func (s StaticTokens) Identify(_ context.Context, token string) *insight.Identity {
	if token == "" {
		return nil
	}
	var found *insight.Identity
	for _, t := range s {
		if t.Token == "" || t.UserID == "" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(t.Token), []byte(token)) == 1 && found == nil {
			found = &insight.Identity{UserID: t.UserID, OrgID: t.OrgID}
		}
	}
	return found
}

// IdentityFromContext returns the identity set by AuthMiddleware, or nil.
func IdentityFromContext(ctx context.Context) *insight.Identity {
	id, _ := ctx.Value(identityKey).(*insight.Identity)
	return id
}

// AuthMiddleware resolves Authorization: Bearer <token> and stores the
// identity in the request context.
func AuthMiddleware(provider IdentityProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}
			var id *insight.Identity
			if provider != nil {
				id = provider.Identify(r.Context(), token)
			}
			if id == nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
		})
	}
}
