package web

import (
	"context"
	"net/http"
	"strings"

	"anisong/internal/auth"
	"anisong/internal/config"
)

type ctxKey string

const identityKey ctxKey = "identity"

// Identity is the authenticated caller extracted from the bearer token.
type Identity struct {
	UserID string
	Role   string
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// AuthMiddleware verifies the Authorization bearer token and stores the
// caller identity in the request context.
func AuthMiddleware(cfg config.JWT, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			WriteError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := auth.VerifyJWT(strings.TrimPrefix(h, "Bearer "), cfg)
		if err != nil {
			WriteError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		id := Identity{UserID: claims.Subject, Role: claims.Role}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin callers. Must run inside AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok || id.Role != auth.RoleAdmin {
			WriteError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}
