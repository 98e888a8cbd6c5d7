package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gessa-sistemas/boletosgo/internal/utils"
)

type contextKey string

const UserContextKey contextKey = "user"

// Permissions by role. Validators only scan; contractors only read their own
// batches; finance owns payment authorization and downloads.
var rolePermissions = map[string][]string{
	"admin": {
		"vouchers.create", "vouchers.read", "vouchers.authorize", "vouchers.request",
		"vouchers.download", "vouchers.scan", "contractors.manage", "audit.read",
	},
	"finance": {
		"vouchers.read", "vouchers.authorize", "vouchers.request",
		"vouchers.download", "audit.read",
	},
	"manager": {
		"vouchers.create", "vouchers.read", "vouchers.request", "vouchers.download",
		"contractors.manage",
	},
	"validator":  {"vouchers.scan", "vouchers.read"},
	"contractor": {"vouchers.read"},
}

// Auth verifies the Bearer token and places its claims in the request context.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(parts[1], secret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission gates a handler on the caller's role.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFrom(r.Context())
			if claims == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			role, _ := claims["role"].(string)
			for _, p := range rolePermissions[role] {
				if p == perm {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "Insufficient permissions", http.StatusForbidden)
		})
	}
}

// ClaimsFrom returns the JWT claims stored by Auth, or nil.
func ClaimsFrom(ctx context.Context) jwt.MapClaims {
	claims, _ := ctx.Value(UserContextKey).(jwt.MapClaims)
	return claims
}

// UserID extracts the caller's id claim, empty when unauthenticated.
func UserID(ctx context.Context) string {
	claims := ClaimsFrom(ctx)
	if claims == nil {
		return ""
	}
	id, _ := claims["id"].(string)
	return id
}

// Username extracts the caller's username claim.
func Username(ctx context.Context) string {
	claims := ClaimsFrom(ctx)
	if claims == nil {
		return ""
	}
	name, _ := claims["username"].(string)
	return name
}
