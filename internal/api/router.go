package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/honeynil/UPIPaymentService/internal/handler"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/auth"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis"
)

type Options struct {
	RateLimit  int
	RateWindow time.Duration
	// Metrics is served at /metrics when set.
	Metrics http.Handler
	// Health reports readiness of the backing stores for /healthz.
	Health func(ctx context.Context) error
}

func SetupRouter(h *handler.Handler, redisClient redis.RedisClient, jwtService *auth.JWTService, opts Options) *mux.Router {
	router := mux.NewRouter()
	router.Use(metricsMiddleware)

	router.HandleFunc("/healthz", healthHandler(opts.Health)).Methods(http.MethodGet)
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	apiRouter := router.PathPrefix("/api").Subrouter()
	if opts.RateLimit > 0 {
		apiRouter.Use(RateLimit(redisClient, opts.RateLimit, opts.RateWindow))
	}

	public := apiRouter.NewRoute().Subrouter()
	h.RegisterPublicRoutes(public)

	// Защищённые роуты с JWT
	protected := apiRouter.NewRoute().Subrouter()
	protected.Use(auth.AuthMiddleware(redisClient, jwtService))
	protected.Use(Idempotency(redisClient))
	h.RegisterProtectedRoutes(protected)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return router
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				slog.Warn("health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
