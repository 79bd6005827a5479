package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/identity"
	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

// Identity resolves the optional bearer token on every request. Requests
// without a token proceed anonymously; a token that is present but invalid
// is rejected rather than silently downgraded.
type Identity struct {
	resolver identity.Resolver
}

// NewIdentity creates the identity middleware.
func NewIdentity(resolver identity.Resolver) *Identity {
	return &Identity{resolver: resolver}
}

// Resolve is the optional-identity middleware.
func (m *Identity) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		ident, err := m.resolver.Resolve(token)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, ident)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCapability gates a route on a resolved identity holding the given
// capability.
func (m *Identity) RequireCapability(cap models.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := GetIdentity(r.Context())
			if ident == nil {
				jsonError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			if !ident.Has(cap) {
				jsonError(w, http.StatusForbidden, "insufficient capability")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity retrieves the resolved identity from the request context, or
// nil for anonymous requests.
func GetIdentity(ctx context.Context) *models.Identity {
	ident, ok := ctx.Value(identityContextKey).(*models.Identity)
	if !ok {
		return nil
	}
	return ident
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	// Browsers cannot set headers on websocket dials; accept a query
	// parameter there.
	return r.URL.Query().Get("access_token")
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
