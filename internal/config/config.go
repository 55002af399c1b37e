package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr        string
	PostgresDSN     string
	RedisAddr       string
	KafkaBrokers    []string
	KafkaTopic      string
	KafkaGroupID    string
	JWTSecret       string
	JWTTTL          time.Duration
	LockTimeout     time.Duration
	HistoryPageSize int
	RateLimit       int
	RateWindow      time.Duration
	BcryptCost      int
	OTLPEndpoint    string
	LogLevel        string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN:     getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=payments sslmode=disable"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "transactions"),
		KafkaGroupID:    getEnv("KAFKA_GROUP_ID", "payment-service-status-cache"),
		JWTSecret:       getEnv("JWT_SECRET", "supersecret"),
		JWTTTL:          getDuration("JWT_TTL", time.Hour),
		LockTimeout:     getDuration("LOCK_TIMEOUT", 5*time.Second),
		HistoryPageSize: getInt("HISTORY_PAGE_SIZE", 100),
		RateLimit:       getInt("RATE_LIMIT", 100),
		RateWindow:      getDuration("RATE_WINDOW", time.Minute),
		BcryptCost:      getInt("BCRYPT_COST", 10),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"lock_timeout", cfg.LockTimeout,
		"history_page_size", cfg.HistoryPageSize)
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		slog.Warn("invalid integer in env, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		slog.Warn("invalid duration in env, using default", "key", key, "value", raw, "default", fallback)
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
