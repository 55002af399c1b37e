package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
)

const rateLimitPrefix = "ratelimit:"

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit allows limit requests per client IP in each fixed window. The
// counter lives in Redis so every replica shares it. When Redis is down the
// request is let through.
func RateLimit(redisClient redis.RedisClient, limit int, window time.Duration) func(http.Handler) http.Handler {
	if window <= 0 {
		window = time.Minute
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slot := time.Now().UnixNano() / int64(window)
			key := fmt.Sprintf("%s%s:%d", rateLimitPrefix, clientIP(r), slot)

			count, err := redisClient.Incr(r.Context(), key)
			if err != nil {
				slog.Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				if err := redisClient.Expire(r.Context(), key, window); err != nil {
					slog.Warn("failed to set rate limit expiry", "key", key, "error", err)
				}
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(limit) {
				slog.Warn("rate limit exceeded", "ip", clientIP(r), "count", count)
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				writeError(w, http.StatusTooManyRequests, pkgerrors.ErrRateLimited.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
