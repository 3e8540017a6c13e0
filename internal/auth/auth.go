// Package auth verifies the platform-issued identity token and exposes the
// caller's identity to handlers. Token minting for end users belongs to the
// platform's auth service; this package only validates what it receives.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Roles recognized by the SOS gateway. Room names on the push channel are the
// same strings.
const (
	RoleWorker     = "worker"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// IsValidRole reports whether role is one of the recognized roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleWorker, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// Identity is the verified caller: id, display name, and role as attested by
// the auth service at token issue time.
type Identity struct {
	ID   string
	Name string
	Role string
}

// Claims are the JWT claims carried by platform tokens.
type Claims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.StandardClaims
}

// Verifier validates HS256 tokens signed with the shared platform secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a token verifier for the given shared secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a token string, returning the caller's identity.
func (v *Verifier) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing subject")
	}
	if !IsValidRole(claims.Role) {
		return nil, fmt.Errorf("token carries unknown role %q", claims.Role)
	}
	return &Identity{ID: claims.Subject, Name: claims.Name, Role: claims.Role}, nil
}

// GenerateToken mints a token for the given identity. Used by tests and local
// development; production tokens come from the platform's auth service.
func (v *Verifier) GenerateToken(identity Identity, ttl time.Duration) (string, error) {
	claims := &Claims{
		Name: identity.Name,
		Role: identity.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   identity.ID,
			ExpiresAt: time.Now().Add(ttl).Unix(),
			IssuedAt:  time.Now().Unix(),
			Issuer:    "sos-gateway",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

type contextKey struct{}

// FromContext returns the verified identity stored by Middleware.
func FromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	return identity, ok
}

// WithIdentity returns a context carrying the given identity. Exposed for tests.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// Middleware rejects requests without a valid token and injects the verified
// identity into the request context. The token travels in the Authorization
// header as a Bearer token; websocket clients, which cannot set headers from
// browsers, may pass it as a token query parameter instead.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			http.Error(w, "Authorization required", http.StatusUnauthorized)
			return
		}

		identity, err := v.Verify(tokenString)
		if err != nil {
			slog.Debug("Token verification failed", "error", err, "path", r.URL.Path)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
