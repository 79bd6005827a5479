package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/models"
)

// Resolver turns a bearer token into a resolved participant identity.
// Token issuance belongs to the external identity service; the core only
// verifies and reads the capability set.
type Resolver interface {
	Resolve(token string) (*models.Identity, error)
}

// Claims is the JWT payload the identity service mints.
type Claims struct {
	DisplayName  string   `json:"display_name,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HMAC-signed tokens from the identity service.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver creates a resolver for the given shared secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

// Resolve parses and verifies the token and maps its claims to an Identity.
func (r *JWTResolver) Resolve(token string) (*models.Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: invalid token", models.ErrForbidden)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token missing subject", models.ErrForbidden)
	}

	id := &models.Identity{
		ID:          claims.Subject,
		DisplayName: claims.DisplayName,
	}
	for _, c := range claims.Capabilities {
		id.Capabilities = append(id.Capabilities, models.Capability(c))
	}
	if len(id.Capabilities) == 0 {
		id.Capabilities = []models.Capability{models.CapViewer}
	}
	return id, nil
}

// Static resolves a fixed token table. Used in tests and local development.
type Static struct {
	Identities map[string]*models.Identity
}

func (s *Static) Resolve(token string) (*models.Identity, error) {
	if id, ok := s.Identities[token]; ok {
		return id, nil
	}
	return nil, fmt.Errorf("%w: unknown token", models.ErrForbidden)
}
