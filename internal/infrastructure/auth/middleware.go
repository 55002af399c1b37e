package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis"
)

type contextKey struct{}

var userIDKey = contextKey{}

// WithUserID returns a copy of ctx carrying the authenticated user.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey).(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// AuthMiddleware accepts a Bearer token only if it is valid and is still the
// session token stored in Redis for its user, so logging in again revokes
// the previous token.
func AuthMiddleware(redisClient redis.RedisClient, jwtService *JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "authorization header missing")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, "invalid authorization header")
				return
			}

			tokenStr := parts[1]
			_, userID, err := jwtService.ValidateJWT(tokenStr)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			storedToken, err := redisClient.Get(r.Context(), SessionKey(userID))
			if err != nil || storedToken != tokenStr {
				slog.Warn("invalid or revoked token", "user_id", userID, "error", err)
				unauthorized(w, "invalid or revoked token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
