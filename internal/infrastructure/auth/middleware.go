package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/honeynil/SureSend/internal/infrastructure/observability"
	"github.com/honeynil/SureSend/internal/infrastructure/redis"
	"github.com/honeynil/SureSend/internal/models"
)

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom returns the caller attached by the authentication middleware.
func PrincipalFrom(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*models.Principal)
	return p, ok && p != nil
}

func revokedKey(tokenID string) string {
	return fmt.Sprintf("revoked:%s", tokenID)
}

// Revoke blocks the token until it would have expired anyway.
func Revoke(ctx context.Context, cache redis.RedisClient, p *models.Principal) error {
	ttl := time.Until(p.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return cache.Set(ctx, revokedKey(p.TokenID), "1", ttl)
}

// IsRevoked reports whether the token id was revoked before its expiry.
func IsRevoked(ctx context.Context, cache redis.RedisClient, tokenID string) (bool, error) {
	_, err := cache.Get(ctx, revokedKey(tokenID))
	if stderrors.Is(err, redis.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func AuthMiddleware(tokens *TokenService, cache redis.RedisClient) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenStr == "" {
				writeError(w, http.StatusUnauthorized, "No token provided")
				return
			}

			principal, err := tokens.ParseAccess(tokenStr)
			if err != nil {
				slog.Warn("authentication failed", "error", err)
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			revoked, err := IsRevoked(r.Context(), cache, principal.TokenID)
			if err != nil {
				// fail closed when the revocation store is unavailable
				slog.Error("failed to check token revocation", "user_id", principal.UserID, "error", err)
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			if revoked {
				slog.Warn("revoked token presented", "user_id", principal.UserID)
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := WithPrincipal(r.Context(), principal)
			ctx = observability.ContextWithAttrs(ctx, "user_id", principal.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows only callers whose user type is in roles.
func RequireRole(roles ...models.UserType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			if !slices.Contains(roles, p.UserType) {
				writeError(w, http.StatusForbidden, "You do not have permission to access this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": message})
}
