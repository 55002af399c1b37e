package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/honeynil/UPIPaymentService/internal/repository"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"github.com/honeynil/UPIPaymentService/pkg/validation"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

type AccountService interface {
	AddAccount(ctx context.Context, userID uuid.UUID, in AddAccountInput) (*models.Account, error)
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]models.Account, error)
	Deposit(ctx context.Context, userID, accountID uuid.UUID, amount decimal.Decimal) (*models.Account, error)
	DeleteAccount(ctx context.Context, userID, accountID uuid.UUID) error
}

type AddAccountInput struct {
	Institution   string `json:"bank_name" validate:"required,max=100"`
	AccountNumber string `json:"account_number" validate:"required,numeric,min=6,max=20"`
	RoutingCode   string `json:"ifsc" validate:"required,alphanum,max=20"`
}

func (in *AddAccountInput) normalize() error {
	in.Institution = strings.TrimSpace(in.Institution)
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	in.RoutingCode = strings.ToUpper(strings.TrimSpace(in.RoutingCode))
	return validation.Struct(in)
}

type accountService struct {
	accountRepo repository.AccountRepository
}

func NewAccountService(accountRepo repository.AccountRepository) *accountService {
	return &accountService{accountRepo: accountRepo}
}

func (s *accountService) AddAccount(ctx context.Context, userID uuid.UUID, in AddAccountInput) (*models.Account, error) {
	ctx, span := otel.Tracer("account-service").Start(ctx, "AddAccount")
	defer span.End()

	if err := in.normalize(); err != nil {
		return nil, err
	}
	account := &models.Account{
		UserID:        userID,
		Institution:   in.Institution,
		AccountNumber: in.AccountNumber,
		RoutingCode:   in.RoutingCode,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}
	slog.Info("bank account linked", "user_id", userID, "account_id", account.ID)
	return account, nil
}

func (s *accountService) ListAccounts(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	ctx, span := otel.Tracer("account-service").Start(ctx, "ListAccounts")
	defer span.End()

	return s.accountRepo.ListByUser(ctx, userID)
}

func (s *accountService) Deposit(ctx context.Context, userID, accountID uuid.UUID, amount decimal.Decimal) (*models.Account, error) {
	ctx, span := otel.Tracer("account-service").Start(ctx, "Deposit")
	defer span.End()

	if !models.ValidAmount(amount) {
		return nil, pkgerrors.ErrInvalidAmount
	}
	account, err := s.accountRepo.Deposit(ctx, userID, accountID, amount)
	if err != nil {
		return nil, asTransient(err)
	}
	return account, nil
}

func (s *accountService) DeleteAccount(ctx context.Context, userID, accountID uuid.UUID) error {
	ctx, span := otel.Tracer("account-service").Start(ctx, "DeleteAccount")
	defer span.End()

	if err := s.accountRepo.Delete(ctx, userID, accountID); err != nil {
		slog.Warn("failed to delete bank account", "user_id", userID, "account_id", accountID, "error", err)
		return asTransient(err)
	}
	return nil
}
