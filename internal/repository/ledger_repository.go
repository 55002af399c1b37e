package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/models"
)

// LedgerRepository runs the balance-moving operations. Each call is one
// atomic unit: either every row change commits or none does.
type LedgerRepository interface {
	Transfer(ctx context.Context, tx *models.Transaction) error
	Respond(ctx context.Context, callerID, transactionID uuid.UUID, action models.Action) (*models.Transaction, error)
}
