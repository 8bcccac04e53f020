package chi

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the caller identity extracted from a verified token.
type Identity struct {
	UserID    string
	DeptID    string
	SessionID string
}

type identityKey struct{}

// IdentityFrom returns the request identity stored by the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// ContextWithIdentity stores a caller identity. Exposed for tests and for
// deployments that terminate authentication upstream.
func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// AuthConfig holds token verification settings.
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// JWTAuthMiddleware returns a middleware that verifies HS256 bearer tokens
// and stores the caller identity in the request context. An empty secret
// disables authentication (pass-through).
func JWTAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// Auth disabled, pass everything through
		if cfg.Secret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			id, ok := verifyToken(r.Header.Get("Authorization"), cfg)
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// verifyToken validates the bearer token and extracts the identity claims.
// Tokens must carry exp, iat, iss, and aud, plus the email, dept, and sid
// identity claims.
func verifyToken(auth string, cfg AuthConfig) (Identity, bool) {
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) {
		return Identity{}, false
	}
	token := strings.TrimSpace(auth[len(bearerPrefix):])

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return Identity{}, false
	}

	email, _ := claims["email"].(string)
	dept, _ := claims["dept"].(string)
	sid, _ := claims["sid"].(string)
	if email == "" || dept == "" || sid == "" {
		return Identity{}, false
	}

	return Identity{UserID: email, DeptID: dept, SessionID: sid}, true
}
