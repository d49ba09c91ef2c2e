package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims checked on the trigger endpoint.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Authenticator verifies HS256 bearer tokens. A nil Authenticator accepts
// every request.
type Authenticator struct {
	secret []byte
	role   string
}

// NewAuthenticator returns nil when secret is empty, which disables auth.
func NewAuthenticator(secret, requiredRole string) *Authenticator {
	if secret == "" {
		return nil
	}
	return &Authenticator{secret: []byte(secret), role: requiredRole}
}

// Authenticate checks the Authorization header of r.
func (a *Authenticator) Authenticate(r *http.Request) error {
	if a == nil {
		return nil
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return fmt.Errorf("%w: missing authorization header", ErrUnauthorized)
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return fmt.Errorf("%w: expected bearer token", ErrUnauthorized)
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return fmt.Errorf("%w: invalid token", ErrUnauthorized)
	}
	if a.role != "" && claims.Role != a.role {
		return fmt.Errorf("%w: role %q not allowed", ErrUnauthorized, claims.Role)
	}
	return nil
}
