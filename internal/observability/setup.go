package observability

import (
	"context"
	"net/http"

	"github.com/honeynil/UPIPaymentService/internal/config"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(ctx context.Context, serviceName string, cfg *config.Config) (func(context.Context) error, http.Handler) {
	observability.InitLogger(cfg.LogLevel)
	observability.InitMetrics()
	tracerShutdown := observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	return tracerShutdown, promhttp.Handler()
}
