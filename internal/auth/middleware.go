package auth

import (
	"context"
	"net/http"

	"ms-redemption/internal/logger"
)

const (
	RoleScanner = "SCANNER"
	RoleAdmin   = "ADMIN"
)

type contextKey string

const claimsKey contextKey = "claims"

// Middleware verifies the bearer token and stores its claims in the request
// context. With skip set every request passes as an anonymous staff member
// holding all roles.
func Middleware(secret string, skip bool, log *logger.Logger) func(http.Handler) http.Handler {
	key := []byte(secret)
	if log == nil {
		log = logger.Discard()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip {
				claims := &Claims{Roles: []string{RoleScanner, RoleAdmin}}
				claims.Subject = "dev"
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
				return
			}

			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := ParseToken(rawToken, key)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", err.Error())
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole rejects requests whose claims lack role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFrom(r.Context())
			if !ok || !claims.HasRole(role) {
				http.Error(w, "missing role "+role, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok && claims != nil
}

// UserID returns the staff id of the authenticated request, or "".
func UserID(ctx context.Context) string {
	if claims, ok := ClaimsFrom(ctx); ok {
		return claims.Subject
	}
	return ""
}
