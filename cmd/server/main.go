package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/UPIPaymentService/internal/api"
	"github.com/honeynil/UPIPaymentService/internal/config"
	"github.com/honeynil/UPIPaymentService/internal/handler"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/auth"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/kafka"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis"
	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/honeynil/UPIPaymentService/internal/observability"
	core "github.com/honeynil/UPIPaymentService/internal/repository/postgres"
	service "github.com/honeynil/UPIPaymentService/internal/services"
	_ "github.com/lib/pq"
)

const (
	serviceName    = "upi-payment-service"
	statusCacheTTL = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()

	// Инициализируем логи, метрики, трейсы
	shutdownTracing, metricsHandler := observability.Setup(ctx, serviceName, cfg)
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("failed to shut down tracing", "error", err)
		}
	}()

	// Подключаемся к Postgres
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		slog.Error("failed to connect to Postgres", "error", err)
		return err
	}
	if err := core.Migrate(ctx, db); err != nil {
		return err
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	// Инициализируем зависимости
	userRepo := core.NewUserRepository(db)
	accountRepo := core.NewAccountRepository(db)
	transactionRepo := core.NewTransactionRepository(db)
	ledgerRepo := core.NewLedgerRepository(db, cfg.LockTimeout)
	statusCache := redis.NewViewCache[models.TransactionDetail](redisClient, "txn:status:", statusCacheTTL)

	producer := kafka.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()
	events := service.NewEventPublisher(producer, cfg.KafkaTopic)

	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)

	authService := service.NewAuthService(userRepo, redisClient, jwtService, cfg.BcryptCost)
	paymentService := service.NewPaymentService(accountRepo, transactionRepo, ledgerRepo, events)
	queryService := service.NewQueryService(accountRepo, transactionRepo, statusCache, cfg.HistoryPageSize)
	accountService := service.NewAccountService(accountRepo)

	// Kafka-консьюмер прогревает кэш статусов
	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID, transactionRepo, statusCache)
	defer consumer.Close()
	go func() {
		if err := consumer.Consume(ctx); err != nil {
			slog.Error("status consumer stopped", "error", err)
		}
	}()

	h := handler.NewHandler(authService, paymentService, queryService, accountService)
	router := api.SetupRouter(h, redisClient, jwtService, api.Options{
		RateLimit:  cfg.RateLimit,
		RateWindow: cfg.RateWindow,
		Metrics:    metricsHandler,
		Health: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		},
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
