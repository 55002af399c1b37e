package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/observability"
	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/honeynil/UPIPaymentService/internal/repository"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"github.com/honeynil/UPIPaymentService/pkg/validation"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PaymentService interface {
	Transfer(ctx context.Context, callerID uuid.UUID, destinationPaymentID string, amount decimal.Decimal, note *string) (*models.Transaction, error)
	CreateRequest(ctx context.Context, callerID uuid.UUID, payerPaymentID string, amount decimal.Decimal, note *string) (*models.Transaction, error)
	Respond(ctx context.Context, callerID, transactionID uuid.UUID, action models.Action) (*models.Transaction, error)
}

type paymentService struct {
	accountRepo     repository.AccountRepository
	transactionRepo repository.TransactionRepository
	ledgerRepo      repository.LedgerRepository
	events          *EventPublisher
}

func NewPaymentService(
	accountRepo repository.AccountRepository,
	transactionRepo repository.TransactionRepository,
	ledgerRepo repository.LedgerRepository,
	events *EventPublisher,
) *paymentService {
	return &paymentService{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		ledgerRepo:      ledgerRepo,
		events:          events,
	}
}

type noteField struct {
	Note string `json:"note" validate:"max=200"`
}

func validateNote(note *string) (*string, error) {
	if note == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil, nil
	}
	if err := validation.Struct(noteField{Note: trimmed}); err != nil {
		return nil, err
	}
	return &trimmed, nil
}

// counterparties resolves the other party's account by payment id and the
// caller's own default account. A caller may not trade with themselves.
func (s *paymentService) counterparties(ctx context.Context, callerID uuid.UUID, paymentID string) (own, other *models.Account, err error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, nil, fmt.Errorf("%w: payment id is required", pkgerrors.ErrInvalidInput)
	}
	other, err = s.accountRepo.Resolve(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	own, err = s.accountRepo.DefaultForUser(ctx, callerID)
	if err != nil {
		return nil, nil, err
	}
	if other.UserID == callerID || other.ID == own.ID {
		return nil, nil, pkgerrors.ErrSelfTransfer
	}
	return own, other, nil
}

// asTransient keeps classified errors and turns anything unclassified from a
// mutation into ErrTransactionFailed.
func asTransient(err error) error {
	if err == nil || pkgerrors.KindOf(err) != pkgerrors.KindInternal {
		return err
	}
	return fmt.Errorf("%w: %w", pkgerrors.ErrTransactionFailed, err)
}

func recordOutcome(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = pkgerrors.KindOf(err).String()
	}
	observability.LedgerOperations.WithLabelValues(operation, outcome).Inc()
}

func (s *paymentService) Transfer(ctx context.Context, callerID uuid.UUID, destinationPaymentID string, amount decimal.Decimal, note *string) (_ *models.Transaction, err error) {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "Transfer")
	defer span.End()
	defer func() { recordOutcome("transfer", err) }()

	if !models.ValidAmount(amount) {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, pkgerrors.ErrInvalidAmount
	}
	if note, err = validateNote(note); err != nil {
		return nil, err
	}

	source, destination, err := s.counterparties(ctx, callerID, destinationPaymentID)
	if err != nil {
		span.SetStatus(codes.Error, pkgerrors.PublicMessage(err))
		slog.Warn("transfer rejected", "user_id", callerID, "to", destinationPaymentID, "error", err)
		return nil, err
	}

	tx := &models.Transaction{
		ID:                   uuid.New(),
		SourceAccountID:      source.ID,
		DestinationAccountID: destination.ID,
		Amount:               amount,
		Kind:                 models.KindTransfer,
		Note:                 note,
	}
	span.SetAttributes(
		attribute.String("transaction_id", tx.ID.String()),
		attribute.String("amount", amount.String()),
	)

	// Проверка до блокировки только ускоряет отказ, решение принимается под блокировкой
	if !source.CanCover(amount) {
		span.SetStatus(codes.Error, "insufficient funds")
		s.recordFailure(ctx, tx)
		return nil, pkgerrors.ErrInsufficientFunds
	}

	if err := s.ledgerRepo.Transfer(ctx, tx); err != nil {
		if errors.Is(err, pkgerrors.ErrInsufficientFunds) {
			span.SetStatus(codes.Error, "insufficient funds")
			s.recordFailure(ctx, tx)
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer failed")
		slog.Error("transfer failed", "user_id", callerID, "transaction_id", tx.ID, "error", err)
		return nil, asTransient(err)
	}

	s.events.Publish(ctx, tx)
	slog.Info("transfer completed",
		"user_id", callerID,
		"transaction_id", tx.ID,
		"amount", amount.StringFixed(models.MoneyScale))
	return tx, nil
}

// recordFailure stores a FAILED audit row for a transfer that could not be
// covered. It moves no funds and its errors are only logged.
func (s *paymentService) recordFailure(ctx context.Context, attempt *models.Transaction) {
	failed := *attempt
	failed.ID = uuid.New()
	failed.Kind = models.KindTransfer
	failed.Status = models.StatusFailed
	if err := s.transactionRepo.Create(ctx, &failed); err != nil {
		slog.Error("failed to record failed transfer", "source_account_id", failed.SourceAccountID, "error", err)
		return
	}
	s.events.Publish(ctx, &failed)
}

func (s *paymentService) CreateRequest(ctx context.Context, callerID uuid.UUID, payerPaymentID string, amount decimal.Decimal, note *string) (_ *models.Transaction, err error) {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "CreateRequest")
	defer span.End()
	defer func() { recordOutcome("request", err) }()

	if !models.ValidAmount(amount) {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, pkgerrors.ErrInvalidAmount
	}
	if note, err = validateNote(note); err != nil {
		return nil, err
	}

	requester, payer, err := s.counterparties(ctx, callerID, payerPaymentID)
	if err != nil {
		span.SetStatus(codes.Error, pkgerrors.PublicMessage(err))
		slog.Warn("money request rejected", "user_id", callerID, "from", payerPaymentID, "error", err)
		return nil, err
	}

	tx := &models.Transaction{
		ID:                   uuid.New(),
		SourceAccountID:      payer.ID,
		DestinationAccountID: requester.ID,
		Amount:               amount,
		Status:               models.StatusPending,
		Kind:                 models.KindRequest,
		Note:                 note,
	}
	if err := s.transactionRepo.Create(ctx, tx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request creation failed")
		return nil, asTransient(err)
	}

	s.events.Publish(ctx, tx)
	slog.Info("money request created", "user_id", callerID, "transaction_id", tx.ID, "payer_account_id", payer.ID)
	return tx, nil
}

func (s *paymentService) Respond(ctx context.Context, callerID, transactionID uuid.UUID, action models.Action) (_ *models.Transaction, err error) {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "Respond")
	defer span.End()
	operation := strings.ToLower(string(action))
	if !action.Valid() {
		operation = "respond"
	}
	defer func() { recordOutcome(operation, err) }()

	if !action.Valid() {
		span.SetStatus(codes.Error, "invalid action")
		return nil, pkgerrors.ErrInvalidAction
	}

	tx, err := s.ledgerRepo.Respond(ctx, callerID, transactionID, action)
	if err != nil {
		span.SetStatus(codes.Error, pkgerrors.PublicMessage(err))
		slog.Warn("respond failed", "user_id", callerID, "transaction_id", transactionID, "action", action, "error", err)
		return nil, asTransient(err)
	}

	s.events.Publish(ctx, tx)
	slog.Info("request resolved", "user_id", callerID, "transaction_id", tx.ID, "status", tx.Status)
	return tx, nil
}
