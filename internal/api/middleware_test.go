package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/auth"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis/redistest"
	"github.com/stretchr/testify/assert"
)

func TestRateLimit(t *testing.T) {
	t.Run("BlocksAfterLimit", func(t *testing.T) {
		fake := redistest.New()
		handler := RateLimit(fake, 3, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions/balance", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions/balance", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))
		assert.Contains(t, rec.Body.String(), "too many requests")
	})

	t.Run("CountsPerClient", func(t *testing.T) {
		fake := redistest.New()
		handler := RateLimit(fake, 1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		for _, addr := range []string{"10.0.0.1:1234", "10.0.0.2:1234"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = addr
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code, addr)
		}
	})

	t.Run("FailsOpenWhenRedisIsDown", func(t *testing.T) {
		fake := redistest.New()
		fake.Err = errors.New("connection refused")
		handler := RateLimit(fake, 1, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		for i := 0; i < 3; i++ {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func idempotentRequest(userID uuid.UUID, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/transactions/send", strings.NewReader(`{}`))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req.WithContext(auth.WithUserID(req.Context(), userID))
}

func TestIdempotency(t *testing.T) {
	t.Run("ReplaysSuccessfulResponse", func(t *testing.T) {
		fake := redistest.New()
		var calls atomic.Int32
		handler := Idempotency(fake)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n := calls.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"txId":"tx-%d"}`, n)
		}))
		userID := uuid.New()

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, idempotentRequest(userID, "key-1"))
		second := httptest.NewRecorder()
		handler.ServeHTTP(second, idempotentRequest(userID, "key-1"))

		assert.Equal(t, int32(1), calls.Load())
		assert.Equal(t, http.StatusCreated, second.Code)
		assert.Equal(t, "true", second.Header().Get(IdempotencyHitHeader))
		assert.JSONEq(t, first.Body.String(), second.Body.String())
	})

	t.Run("KeysAreScopedPerUser", func(t *testing.T) {
		fake := redistest.New()
		var calls atomic.Int32
		handler := Idempotency(fake)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Write([]byte(`{}`))
		}))

		handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(uuid.New(), "shared"))
		handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(uuid.New(), "shared"))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("FailuresAreNotStored", func(t *testing.T) {
		fake := redistest.New()
		var calls atomic.Int32
		handler := Idempotency(fake)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"insufficient funds"}`))
		}))
		userID := uuid.New()

		handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(userID, "retry-me"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, idempotentRequest(userID, "retry-me"))

		assert.Equal(t, int32(2), calls.Load())
		assert.Empty(t, rec.Header().Get(IdempotencyHitHeader))
	})

	t.Run("ConcurrentDuplicateConflicts", func(t *testing.T) {
		fake := redistest.New()
		userID := uuid.New()
		// Another replica already holds the lock for this key.
		lockKey := idempotencyLock + idempotencyScope(idempotentRequest(userID, "busy"), userID, "busy")
		_, _ = fake.SetNX(t.Context(), lockKey, "processing", time.Minute)

		handler := Idempotency(fake)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, idempotentRequest(userID, "busy"))
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("FirstRequestFinishesBeforeLock", func(t *testing.T) {
		userID := uuid.New()
		req := idempotentRequest(userID, "late")
		scope := idempotencyScope(req, userID, "late")
		store := &finishingRedis{Fake: redistest.New(), cacheKey: idempotencyPrefix + scope}
		// The first request stores its response and releases the lock right
		// after this one has seen an empty cache.
		store.finish = func(ctx context.Context) {
			_ = store.Fake.Set(ctx, idempotencyPrefix+scope, `{"status":200,"body":{"txId":"tx-1"}}`, time.Minute)
			_ = store.Fake.Del(ctx, idempotencyLock+scope)
		}

		var calls atomic.Int32
		handler := Idempotency(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Write([]byte(`{"txId":"tx-2"}`))
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, int32(0), calls.Load())
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "true", rec.Header().Get(IdempotencyHitHeader))
		assert.JSONEq(t, `{"txId":"tx-1"}`, rec.Body.String())
	})

	t.Run("KeysAreScopedPerPath", func(t *testing.T) {
		fake := redistest.New()
		var calls atomic.Int32
		handler := Idempotency(fake)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Write([]byte(`{}`))
		}))
		userID := uuid.New()

		send := idempotentRequest(userID, "same")
		request := httptest.NewRequest(http.MethodPost, "/api/transactions/request", strings.NewReader(`{}`))
		request.Header.Set(IdempotencyHeader, "same")
		request = request.WithContext(auth.WithUserID(request.Context(), userID))

		handler.ServeHTTP(httptest.NewRecorder(), send)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, request)

		assert.Equal(t, int32(2), calls.Load())
		assert.Empty(t, rec.Header().Get(IdempotencyHitHeader))
	})

	t.Run("WithoutKeyPassesThrough", func(t *testing.T) {
		fake := redistest.New()
		var calls atomic.Int32
		handler := Idempotency(fake)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.Write([]byte(`{}`))
		}))
		userID := uuid.New()

		handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(userID, ""))
		handler.ServeHTTP(httptest.NewRecorder(), idempotentRequest(userID, ""))
		assert.Equal(t, int32(2), calls.Load())
	})
}

// finishingRedis runs finish once, right after the first lookup of cacheKey
// has returned.
type finishingRedis struct {
	*redistest.Fake
	cacheKey string
	finish   func(ctx context.Context)
	once     sync.Once
}

func (f *finishingRedis) Get(ctx context.Context, key string) (string, error) {
	value, err := f.Fake.Get(ctx, key)
	if key == f.cacheKey {
		f.once.Do(func() { f.finish(ctx) })
	}
	return value, err
}
