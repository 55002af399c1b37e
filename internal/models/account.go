package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is a settlement account. Balance never goes below zero after a
// committed mutation.
type Account struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Institution   string          `json:"bank_name"`
	AccountNumber string          `json:"account_number"`
	RoutingCode   string          `json:"ifsc"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CanCover reports whether the balance is enough to debit amount.
func (a *Account) CanCover(amount decimal.Decimal) bool {
	return a.Balance.GreaterThanOrEqual(amount)
}
