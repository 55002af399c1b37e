package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/shopspring/decimal"
)

// AccountRepository is the account directory. When a user owns several
// accounts, Resolve and DefaultForUser both pick the oldest one
// (created_at, then id).
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	Resolve(ctx context.Context, paymentID string) (*models.Account, error)
	DefaultForUser(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Account, error)
	Deposit(ctx context.Context, userID, accountID uuid.UUID, amount decimal.Decimal) (*models.Account, error)
	Delete(ctx context.Context, userID, accountID uuid.UUID) error
}
