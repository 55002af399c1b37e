package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis"
	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/honeynil/UPIPaymentService/internal/repository"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

type QueryService interface {
	Balance(ctx context.Context, userID uuid.UUID) ([]models.Account, error)
	Status(ctx context.Context, callerID, transactionID uuid.UUID) (*models.TransactionDetail, error)
	History(ctx context.Context, userID uuid.UUID, filter models.HistoryFilter) ([]models.Transaction, error)
}

type queryService struct {
	accountRepo     repository.AccountRepository
	transactionRepo repository.TransactionRepository
	statusCache     *redis.ViewCache[models.TransactionDetail]
	pageSize        int
}

func NewQueryService(
	accountRepo repository.AccountRepository,
	transactionRepo repository.TransactionRepository,
	statusCache *redis.ViewCache[models.TransactionDetail],
	pageSize int,
) *queryService {
	return &queryService{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		statusCache:     statusCache,
		pageSize:        pageSize,
	}
}

func (s *queryService) Balance(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	tracer := otel.Tracer("query-service")
	ctx, span := tracer.Start(ctx, "Balance")
	defer span.End()

	accounts, err := s.accountRepo.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list accounts")
		slog.Error("failed to get balance", "user_id", userID, "error", err)
		return nil, err
	}
	return accounts, nil
}

// Status returns the transaction as seen by one of its parties. A caller who
// owns neither side gets ErrTransactionNotFound, same as for a missing id.
// Only terminal rows are cached since they never change again.
func (s *queryService) Status(ctx context.Context, callerID, transactionID uuid.UUID) (*models.TransactionDetail, error) {
	tracer := otel.Tracer("query-service")
	ctx, span := tracer.Start(ctx, "Status")
	defer span.End()

	id := transactionID.String()
	if s.statusCache != nil {
		if detail, ok := s.statusCache.Get(ctx, id); ok {
			if !detail.InvolvesUser(callerID) {
				return nil, pkgerrors.ErrTransactionNotFound
			}
			slog.Debug("status fetched from Redis", "transaction_id", id)
			return detail, nil
		}
	}

	detail, err := s.transactionRepo.GetDetail(ctx, transactionID)
	if err != nil {
		span.SetStatus(codes.Error, pkgerrors.PublicMessage(err))
		return nil, err
	}
	if !detail.InvolvesUser(callerID) {
		slog.Warn("status requested by non-party", "user_id", callerID, "transaction_id", id)
		return nil, pkgerrors.ErrTransactionNotFound
	}
	if s.statusCache != nil && detail.Status.Terminal() {
		s.statusCache.Set(ctx, id, detail)
	}
	return detail, nil
}

func (s *queryService) History(ctx context.Context, userID uuid.UUID, filter models.HistoryFilter) ([]models.Transaction, error) {
	tracer := otel.Tracer("query-service")
	ctx, span := tracer.Start(ctx, "History")
	defer span.End()

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, pkgerrors.ErrInvalidFilter
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return nil, pkgerrors.ErrInvalidFilter
	}

	history, err := s.transactionRepo.History(ctx, userID, filter, s.pageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get history")
		slog.Error("failed to get transaction history", "user_id", userID, "error", err)
		return nil, err
	}
	slog.Info("transaction history retrieved", "user_id", userID, "count", len(history))
	return history, nil
}
