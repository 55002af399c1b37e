package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/observability"
	"github.com/honeynil/UPIPaymentService/internal/models"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const ledgerTracer = "ledger-repository"

// LedgerRepository moves funds between accounts. Every exported method is a
// single database transaction holding row locks on the accounts it touches
// until commit or rollback.
type LedgerRepository struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewLedgerRepository(db *sql.DB, lockTimeout time.Duration) *LedgerRepository {
	return &LedgerRepository{db: db, lockTimeout: lockTimeout}
}

// Transfer settles tx immediately. The row is inserted PENDING and advanced
// to SUCCESS inside the same unit, so readers only ever see it settled.
func (r *LedgerRepository) Transfer(ctx context.Context, tx *models.Transaction) (err error) {
	ctx, done := observability.Track(ctx, ledgerTracer, "Transfer")
	defer func() { done(err) }()

	if tx == nil {
		return pkgerrors.ErrNilTransaction
	}
	if !models.ValidAmount(tx.Amount) {
		return pkgerrors.ErrInvalidAmount
	}
	if tx.SourceAccountID == tx.DestinationAccountID {
		return pkgerrors.ErrSelfTransfer
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("transaction_id", tx.ID.String()),
		attribute.String("source_account_id", tx.SourceAccountID.String()),
		attribute.String("destination_account_id", tx.DestinationAccountID.String()),
		attribute.String("amount", tx.Amount.String()),
	)

	dbTx, err := r.begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = rollback(dbTx, "Transfer", err)
			slog.Warn("transfer rolled back", "method", "Transfer", "id", tx.ID, "error", err)
		}
	}()

	balances, err := lockAccounts(ctx, dbTx, tx.SourceAccountID, tx.DestinationAccountID)
	if err != nil {
		return err
	}
	if balances[tx.SourceAccountID].LessThan(tx.Amount) {
		return pkgerrors.ErrInsufficientFunds
	}

	tx.Kind = models.KindTransfer
	tx.Status = models.StatusPending
	query := `
		INSERT INTO transactions (id, source_account_id, destination_account_id, amount, status, kind, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	err = dbTx.QueryRowContext(ctx, query,
		tx.ID,
		tx.SourceAccountID,
		tx.DestinationAccountID,
		tx.Amount,
		tx.Status,
		tx.Kind,
		nullString(tx.Note),
	).Scan(&tx.CreatedAt)
	if err != nil {
		return storeFailure("insert transaction", err)
	}

	if err = settle(ctx, dbTx, tx.SourceAccountID, tx.DestinationAccountID, tx.Amount); err != nil {
		return err
	}
	if tx.UpdatedAt, err = advance(ctx, dbTx, tx.ID, models.StatusSuccess); err != nil {
		return err
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Transfer", "id", tx.ID, "error", err)
		return storeFailure("commit", err)
	}
	tx.Status = models.StatusSuccess

	slog.Info("transfer settled", "method", "Transfer", "id", tx.ID,
		"source_account_id", tx.SourceAccountID,
		"destination_account_id", tx.DestinationAccountID,
		"amount", tx.Amount.StringFixed(models.MoneyScale))
	return nil
}

// Respond resolves a pending money request on behalf of its payer. The
// request row is locked first, so concurrent responders serialize and only
// the first one sees PENDING.
func (r *LedgerRepository) Respond(ctx context.Context, callerID, transactionID uuid.UUID, action models.Action) (_ *models.Transaction, err error) {
	ctx, done := observability.Track(ctx, ledgerTracer, "Respond")
	defer func() { done(err) }()

	if !action.Valid() {
		return nil, pkgerrors.ErrInvalidAction
	}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("transaction_id", transactionID.String()),
		attribute.String("action", string(action)),
	)

	dbTx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = rollback(dbTx, "Respond", err)
		}
	}()

	query := `
		SELECT ` + transactionColumns + `, s.user_id
		FROM transactions t
		JOIN accounts s ON s.id = t.source_account_id
		WHERE t.id = $1 AND t.kind = $2
		FOR UPDATE OF t
	`
	var payerID uuid.UUID
	var note sql.NullString
	var tx models.Transaction
	err = dbTx.QueryRowContext(ctx, query, transactionID, models.KindRequest).Scan(
		&tx.ID,
		&tx.SourceAccountID,
		&tx.DestinationAccountID,
		&tx.Amount,
		&tx.Status,
		&tx.Kind,
		&note,
		&tx.CreatedAt,
		&tx.UpdatedAt,
		&payerID,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, storeFailure("lock request", err)
	}
	if note.Valid {
		tx.Note = &note.String
	}

	if payerID != callerID {
		return nil, pkgerrors.ErrNotAuthorized
	}
	if tx.Status != models.StatusPending {
		return nil, pkgerrors.ErrAlreadyResolved
	}

	next := models.StatusRejected
	if action == models.ActionAccept {
		next = models.StatusSuccess
		balances, err := lockAccounts(ctx, dbTx, tx.SourceAccountID, tx.DestinationAccountID)
		if err != nil {
			return nil, err
		}
		if balances[tx.SourceAccountID].LessThan(tx.Amount) {
			return nil, pkgerrors.ErrInsufficientFunds
		}
		if err = settle(ctx, dbTx, tx.SourceAccountID, tx.DestinationAccountID, tx.Amount); err != nil {
			return nil, err
		}
	}

	if tx.UpdatedAt, err = advance(ctx, dbTx, tx.ID, next); err != nil {
		return nil, err
	}
	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Respond", "id", tx.ID, "error", err)
		return nil, storeFailure("commit", err)
	}
	tx.Status = next

	slog.Info("request resolved", "method", "Respond", "id", tx.ID, "action", action, "status", tx.Status)
	return &tx, nil
}

func (r *LedgerRepository) begin(ctx context.Context) (*sql.Tx, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		return nil, storeFailure("begin", err)
	}
	if err := setLockTimeout(ctx, dbTx, r.lockTimeout); err != nil {
		return nil, rollback(dbTx, "begin", storeFailure("set lock timeout", err))
	}
	return dbTx, nil
}

// lockAccounts takes exclusive row locks on both accounts in id order, so two
// opposite transfers between the same pair cannot deadlock, and returns
// their balances as seen under the lock.
func lockAccounts(ctx context.Context, dbTx *sql.Tx, source, destination uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	rows, err := dbTx.QueryContext(ctx,
		`SELECT id, balance FROM accounts WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`,
		source, destination)
	if err != nil {
		return nil, storeFailure("lock accounts", err)
	}
	defer rows.Close()

	balances := make(map[uuid.UUID]decimal.Decimal, 2)
	for rows.Next() {
		var id uuid.UUID
		var balance decimal.Decimal
		if err := rows.Scan(&id, &balance); err != nil {
			return nil, storeFailure("scan account", err)
		}
		balances[id] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, storeFailure("lock accounts", err)
	}
	if _, ok := balances[source]; !ok {
		return nil, pkgerrors.ErrAccountNotFound
	}
	if _, ok := balances[destination]; !ok {
		return nil, pkgerrors.ErrAccountNotFound
	}
	return balances, nil
}

// settle debits source and credits destination by the same amount. Callers
// must already hold both row locks.
func settle(ctx context.Context, dbTx *sql.Tx, source, destination uuid.UUID, amount decimal.Decimal) error {
	res, err := dbTx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance - $1 WHERE id = $2 AND balance >= $1`,
		amount, source)
	if err != nil {
		return storeFailure("debit", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storeFailure("debit", err)
	} else if n != 1 {
		return pkgerrors.ErrInsufficientFunds
	}

	res, err = dbTx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $1 WHERE id = $2`,
		amount, destination)
	if err != nil {
		return storeFailure("credit", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return storeFailure("credit", err)
	} else if n != 1 {
		return pkgerrors.ErrAccountNotFound
	}
	return nil
}

// advance moves a PENDING row to next. A row that is no longer PENDING is
// reported as already resolved.
func advance(ctx context.Context, dbTx *sql.Tx, id uuid.UUID, next models.StatusType) (time.Time, error) {
	if !models.StatusPending.CanTransitionTo(next) {
		return time.Time{}, pkgerrors.ErrInvalidStatus
	}
	var updatedAt time.Time
	err := dbTx.QueryRowContext(ctx,
		`UPDATE transactions SET status = $1, updated_at = now() WHERE id = $2 AND status = $3 RETURNING updated_at`,
		next, id, models.StatusPending).Scan(&updatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return time.Time{}, pkgerrors.ErrAlreadyResolved
	}
	if err != nil {
		return time.Time{}, storeFailure("advance status", err)
	}
	return updatedAt, nil
}
