package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/auth"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
)

const (
	IdempotencyHeader    = "Idempotency-Key"
	IdempotencyHitHeader = "X-Idempotency-Hit"

	idempotencyTTL     = 24 * time.Hour
	idempotencyLockTTL = 10 * time.Second
	idempotencyPrefix  = "idempotency:"
	idempotencyLock    = "idempotency:lock:"
	maxIdempotencyKey  = 128
)

type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// responseCapture keeps a copy of what the handler writes.
type responseCapture struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *responseCapture) WriteHeader(status int) {
	c.status = status
	c.ResponseWriter.WriteHeader(status)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a repeated POST carrying the
// same Idempotency-Key from the same user on the same method and path. Only 2xx
// responses are stored, and a duplicate that arrives while the first request
// is still running gets 409.
func Idempotency(redisClient redis.RedisClient) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKey {
				writeError(w, http.StatusBadRequest, "idempotency key too long")
				return
			}
			userID, ok := auth.UserIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			scope := idempotencyScope(r, userID, key)
			cacheKey := idempotencyPrefix + scope
			lockKey := idempotencyLock + scope

			done, err := replay(w, r, redisClient, cacheKey)
			if err != nil {
				writeError(w, http.StatusInternalServerError, pkgerrors.ErrInternal.Error())
				return
			}
			if done {
				return
			}

			acquired, err := redisClient.SetNX(ctx, lockKey, "processing", idempotencyLockTTL)
			if err != nil {
				slog.Error("failed to acquire idempotency lock", "key", lockKey, "error", err)
				writeError(w, http.StatusInternalServerError, pkgerrors.ErrInternal.Error())
				return
			}
			if !acquired {
				slog.Warn("concurrent request with the same idempotency key", "user_id", userID, "key", key)
				writeError(w, http.StatusConflict, pkgerrors.ErrRequestInProgress.Error())
				return
			}
			defer func() {
				if err := redisClient.Del(ctx, lockKey); err != nil {
					slog.Warn("failed to release idempotency lock", "key", lockKey, "error", err)
				}
			}()

			// Первый запрос мог закончиться между чтением кэша и захватом лока
			done, err = replay(w, r, redisClient, cacheKey)
			if err != nil {
				writeError(w, http.StatusInternalServerError, pkgerrors.ErrInternal.Error())
				return
			}
			if done {
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			if capture.status < 200 || capture.status >= 300 {
				return
			}
			payload, err := json.Marshal(cachedResponse{Status: capture.status, Body: capture.body.Bytes()})
			if err != nil {
				slog.Error("failed to encode idempotent response", "key", cacheKey, "error", err)
				return
			}
			if err := redisClient.Set(ctx, cacheKey, string(payload), idempotencyTTL); err != nil {
				slog.Error("failed to store idempotent response", "key", cacheKey, "error", err)
			}
		})
	}
}

// idempotencyScope ties a key to the user and to the exact method and path,
// so one key reused on another endpoint or another request id runs anew.
func idempotencyScope(r *http.Request, userID uuid.UUID, key string) string {
	return r.Method + ":" + r.URL.Path + ":" + userID.String() + ":" + key
}

// replay writes the stored response for cacheKey if there is one.
func replay(w http.ResponseWriter, r *http.Request, redisClient redis.RedisClient, cacheKey string) (bool, error) {
	raw, err := redisClient.Get(r.Context(), cacheKey)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		slog.Error("idempotency lookup failed", "key", cacheKey, "error", err)
		return false, err
	}

	var cached cachedResponse
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		slog.Warn("corrupt idempotency entry", "key", cacheKey)
		return false, nil
	}
	slog.Info("idempotent replay", "key", cacheKey)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(IdempotencyHitHeader, "true")
	w.WriteHeader(cached.Status)
	w.Write(cached.Body)
	return true, nil
}
