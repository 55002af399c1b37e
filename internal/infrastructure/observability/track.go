package observability

import (
	"context"
	"time"

	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Track starts a span for a repository method. The returned func records the
// outcome in RepositoryCalls and RepositoryDuration and ends the span.
// Business rule rejections are labelled "rejected" and do not mark the span
// as failed.
func Track(ctx context.Context, tracerName, method string) (context.Context, func(err error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, method)
	start := time.Now()

	return ctx, func(err error) {
		status := "success"
		if err != nil {
			switch pkgerrors.KindOf(err) {
			case pkgerrors.KindInternal, pkgerrors.KindTransactionFailed:
				status = "error"
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			default:
				status = "rejected"
				span.SetStatus(codes.Error, pkgerrors.PublicMessage(err))
			}
		}
		RepositoryCalls.WithLabelValues(method, status).Inc()
		RepositoryDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		span.End()
	}
}
