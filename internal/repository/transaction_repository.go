package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/models"
)

type TransactionRepository interface {
	// Create inserts a row that moves no funds: a PENDING request or a
	// FAILED transfer attempt.
	Create(ctx context.Context, tx *models.Transaction) error
	GetDetail(ctx context.Context, id uuid.UUID) (*models.TransactionDetail, error)
	History(ctx context.Context, userID uuid.UUID, filter models.HistoryFilter, limit int) ([]models.Transaction, error)
}
