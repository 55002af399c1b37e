package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/observability"
	"github.com/honeynil/UPIPaymentService/internal/models"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const transactionTracer = "transaction-repository"

const transactionColumns = `t.id, t.source_account_id, t.destination_account_id, t.amount, t.status, t.kind, t.note, t.created_at, t.updated_at`

type TransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var tx models.Transaction
	var note sql.NullString
	err := row.Scan(
		&tx.ID,
		&tx.SourceAccountID,
		&tx.DestinationAccountID,
		&tx.Amount,
		&tx.Status,
		&tx.Kind,
		&note,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if note.Valid {
		tx.Note = &note.String
	}
	return &tx, nil
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Create inserts a row that does not move funds. Only a PENDING request or a
// FAILED transfer may be created this way; settled transfers go through the
// ledger.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) (err error) {
	ctx, done := observability.Track(ctx, transactionTracer, "CreateTransaction")
	defer func() { done(err) }()

	if tx == nil {
		err = pkgerrors.ErrNilTransaction
		slog.Error("failed to create transaction", "method", "Create", "error", err)
		return err
	}
	if !tx.Kind.Valid() {
		slog.Error("invalid transaction kind", "method", "Create", "kind", tx.Kind)
		return pkgerrors.ErrInvalidKind
	}
	switch {
	case tx.Kind == models.KindRequest && tx.Status == models.StatusPending:
	case tx.Kind == models.KindTransfer && tx.Status == models.StatusFailed:
	default:
		slog.Error("invalid transaction status", "method", "Create", "kind", tx.Kind, "status", tx.Status)
		return pkgerrors.ErrInvalidStatus
	}
	if !models.ValidAmount(tx.Amount) {
		slog.Error("amount must be positive", "method", "Create", "amount", tx.Amount)
		return pkgerrors.ErrInvalidAmount
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("transaction_id", tx.ID.String()),
		attribute.String("amount", tx.Amount.String()),
		attribute.String("kind", string(tx.Kind)),
		attribute.String("status", string(tx.Status)),
	)

	query := `
		INSERT INTO transactions (id, source_account_id, destination_account_id, amount, status, kind, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, query,
		tx.ID,
		tx.SourceAccountID,
		tx.DestinationAccountID,
		tx.Amount,
		tx.Status,
		tx.Kind,
		nullString(tx.Note),
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		slog.Error("failed to create transaction", "method", "Create", "id", tx.ID, "kind", tx.Kind, "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	slog.Info("transaction created", "method", "Create", "id", tx.ID, "kind", tx.Kind, "status", tx.Status)
	return nil
}

func (r *TransactionRepository) GetDetail(ctx context.Context, id uuid.UUID) (_ *models.TransactionDetail, err error) {
	ctx, done := observability.Track(ctx, transactionTracer, "GetTransactionDetail")
	defer func() { done(err) }()
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("transaction_id", id.String()))

	query := `
		SELECT t.id, t.amount, t.status, t.kind, t.note,
		       s.account_number, s.institution, s.user_id,
		       d.account_number, d.institution, d.user_id,
		       t.created_at
		FROM transactions t
		JOIN accounts s ON s.id = t.source_account_id
		JOIN accounts d ON d.id = t.destination_account_id
		WHERE t.id = $1
	`
	var detail models.TransactionDetail
	var note sql.NullString
	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&detail.ID,
		&detail.Amount,
		&detail.Status,
		&detail.Kind,
		&note,
		&detail.FromAccount,
		&detail.FromInstitution,
		&detail.FromUserID,
		&detail.ToAccount,
		&detail.ToInstitution,
		&detail.ToUserID,
		&detail.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	if err != nil {
		slog.Error("failed to get transaction detail", "method", "GetDetail", "transaction_id", id, "error", err)
		return nil, fmt.Errorf("failed to get transaction detail: %w", err)
	}
	if note.Valid {
		detail.Note = &note.String
	}
	return &detail, nil
}

// History returns the user's transactions on either side, newest first,
// capped at limit rows.
func (r *TransactionRepository) History(ctx context.Context, userID uuid.UUID, filter models.HistoryFilter, limit int) (_ []models.Transaction, err error) {
	ctx, done := observability.Track(ctx, transactionTracer, "GetHistory")
	defer func() { done(err) }()

	query, args := historyQuery(userID, filter, limit)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("failed to get history", "method", "History", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	history := make([]models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		history = append(history, *tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	slog.Info("history retrieved", "method", "History", "user_id", userID, "count", len(history))
	return history, nil
}

func historyQuery(userID uuid.UUID, filter models.HistoryFilter, limit int) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + transactionColumns + `
		FROM transactions t
		WHERE (t.source_account_id IN (SELECT id FROM accounts WHERE user_id = $1)
		    OR t.destination_account_id IN (SELECT id FROM accounts WHERE user_id = $1))`)
	args := []any{userID}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		fmt.Fprintf(&b, " AND t.status = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		fmt.Fprintf(&b, " AND t.created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		fmt.Fprintf(&b, " AND t.created_at <= $%d", len(args))
	}

	args = append(args, limit)
	fmt.Fprintf(&b, " ORDER BY t.created_at DESC, t.id DESC LIMIT $%d", len(args))
	return b.String(), args
}
