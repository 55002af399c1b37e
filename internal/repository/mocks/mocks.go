// Package mocks holds testify mocks for the repository interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/honeynil/UPIPaymentService/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

var (
	_ repository.UserRepository        = (*UserRepository)(nil)
	_ repository.AccountRepository     = (*AccountRepository)(nil)
	_ repository.TransactionRepository = (*TransactionRepository)(nil)
	_ repository.LedgerRepository      = (*LedgerRepository)(nil)
)

type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) Create(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

type AccountRepository struct {
	mock.Mock
}

func (m *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *AccountRepository) Resolve(ctx context.Context, paymentID string) (*models.Account, error) {
	args := m.Called(ctx, paymentID)
	acc, _ := args.Get(0).(*models.Account)
	return acc, args.Error(1)
}

func (m *AccountRepository) DefaultForUser(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	args := m.Called(ctx, userID)
	acc, _ := args.Get(0).(*models.Account)
	return acc, args.Error(1)
}

func (m *AccountRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	args := m.Called(ctx, userID)
	accounts, _ := args.Get(0).([]models.Account)
	return accounts, args.Error(1)
}

func (m *AccountRepository) Deposit(ctx context.Context, userID, accountID uuid.UUID, amount decimal.Decimal) (*models.Account, error) {
	args := m.Called(ctx, userID, accountID, amount)
	acc, _ := args.Get(0).(*models.Account)
	return acc, args.Error(1)
}

func (m *AccountRepository) Delete(ctx context.Context, userID, accountID uuid.UUID) error {
	return m.Called(ctx, userID, accountID).Error(0)
}

type TransactionRepository struct {
	mock.Mock
}

func (m *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *TransactionRepository) GetDetail(ctx context.Context, id uuid.UUID) (*models.TransactionDetail, error) {
	args := m.Called(ctx, id)
	detail, _ := args.Get(0).(*models.TransactionDetail)
	return detail, args.Error(1)
}

func (m *TransactionRepository) History(ctx context.Context, userID uuid.UUID, filter models.HistoryFilter, limit int) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, filter, limit)
	history, _ := args.Get(0).([]models.Transaction)
	return history, args.Error(1)
}

type LedgerRepository struct {
	mock.Mock
}

func (m *LedgerRepository) Transfer(ctx context.Context, tx *models.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *LedgerRepository) Respond(ctx context.Context, callerID, transactionID uuid.UUID, action models.Action) (*models.Transaction, error) {
	args := m.Called(ctx, callerID, transactionID, action)
	tx, _ := args.Get(0).(*models.Transaction)
	return tx, args.Error(1)
}
