package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/observability"
	"github.com/honeynil/UPIPaymentService/internal/models"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"github.com/shopspring/decimal"
)

const accountTracer = "account-repository"

const accountColumns = `a.id, a.user_id, a.institution, a.account_number, a.routing_code, a.balance, a.created_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var acc models.Account
	err := row.Scan(
		&acc.ID,
		&acc.UserID,
		&acc.Institution,
		&acc.AccountNumber,
		&acc.RoutingCode,
		&acc.Balance,
		&acc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (err error) {
	ctx, done := observability.Track(ctx, accountTracer, "CreateAccount")
	defer func() { done(err) }()

	if account == nil || account.UserID == uuid.Nil {
		return fmt.Errorf("%w: account owner is required", pkgerrors.ErrInvalidInput)
	}
	if account.Institution == "" || account.AccountNumber == "" || account.RoutingCode == "" {
		return fmt.Errorf("%w: bank name, account number and routing code are required", pkgerrors.ErrInvalidInput)
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.Balance = decimal.Zero

	query := `
		INSERT INTO accounts (id, user_id, institution, account_number, routing_code, balance)
		VALUES ($1, $2, $3, $4, $5, 0)
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		account.ID,
		account.UserID,
		account.Institution,
		account.AccountNumber,
		account.RoutingCode,
	).Scan(&account.CreatedAt)
	if pqCode(err) == codeForeignKeyViolation {
		return pkgerrors.ErrUserNotFound
	}
	if err != nil {
		slog.Error("failed to create account", "method", "Create", "user_id", account.UserID, "error", err)
		return fmt.Errorf("failed to create account: %w", err)
	}

	slog.Info("account created", "method", "Create", "account_id", account.ID, "user_id", account.UserID)
	return nil
}

// Resolve returns the settlement account of the user owning paymentID.
func (r *AccountRepository) Resolve(ctx context.Context, paymentID string) (_ *models.Account, err error) {
	ctx, done := observability.Track(ctx, accountTracer, "ResolveAccount")
	defer func() { done(err) }()

	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		JOIN users u ON u.id = a.user_id
		WHERE u.payment_id = $1
		ORDER BY a.created_at ASC, a.id ASC
		LIMIT 1
	`
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, paymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrPaymentIDNotFound
	}
	if err != nil {
		slog.Error("failed to resolve payment id", "method", "Resolve", "payment_id", paymentID, "error", err)
		return nil, fmt.Errorf("failed to resolve payment id: %w", err)
	}
	return acc, nil
}

func (r *AccountRepository) DefaultForUser(ctx context.Context, userID uuid.UUID) (_ *models.Account, err error) {
	ctx, done := observability.Track(ctx, accountTracer, "DefaultAccount")
	defer func() { done(err) }()

	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		WHERE a.user_id = $1
		ORDER BY a.created_at ASC, a.id ASC
		LIMIT 1
	`
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNoLinkedAccount
	}
	if err != nil {
		slog.Error("failed to get default account", "method", "DefaultForUser", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get default account: %w", err)
	}
	return acc, nil
}

func (r *AccountRepository) ListByUser(ctx context.Context, userID uuid.UUID) (_ []models.Account, err error) {
	ctx, done := observability.Track(ctx, accountTracer, "ListAccounts")
	defer func() { done(err) }()

	query := `
		SELECT ` + accountColumns + `
		FROM accounts a
		WHERE a.user_id = $1
		ORDER BY a.created_at ASC, a.id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, *acc)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// Deposit tops up one of the user's own accounts.
func (r *AccountRepository) Deposit(ctx context.Context, userID, accountID uuid.UUID, amount decimal.Decimal) (_ *models.Account, err error) {
	ctx, done := observability.Track(ctx, accountTracer, "Deposit")
	defer func() { done(err) }()

	if !models.ValidAmount(amount) {
		return nil, pkgerrors.ErrInvalidAmount
	}

	query := `
		UPDATE accounts a
		SET balance = balance + $1
		WHERE a.id = $2 AND a.user_id = $3
		RETURNING ` + accountColumns
	acc, err := scanAccount(r.db.QueryRowContext(ctx, query, amount, accountID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrAccountNotFound
	}
	if err != nil {
		slog.Error("failed to deposit", "method", "Deposit", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to deposit: %w", err)
	}

	slog.Info("deposit applied", "method", "Deposit", "account_id", accountID, "amount", amount.StringFixed(models.MoneyScale))
	return acc, nil
}

// Delete removes an account unless a pending transaction still references it.
// Accounts with settled history are kept by the foreign keys.
//
// The pending check runs under the account lock. A Respond waiting for this
// account always holds a PENDING request on it, so Delete refuses before its
// DELETE would need that request row.
func (r *AccountRepository) Delete(ctx context.Context, userID, accountID uuid.UUID) (err error) {
	ctx, done := observability.Track(ctx, accountTracer, "DeleteAccount")
	defer func() { done(err) }()

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = rollback(dbTx, "Delete", err)
		}
	}()

	var id uuid.UUID
	err = dbTx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE id = $1 AND user_id = $2 FOR UPDATE`, accountID, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return pkgerrors.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}

	var pending bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE (source_account_id = $1 OR destination_account_id = $1) AND status = $2
		)
	`
	if err = dbTx.QueryRowContext(ctx, query, accountID, models.StatusPending).Scan(&pending); err != nil {
		return fmt.Errorf("failed to check pending transactions: %w", err)
	}
	if pending {
		return pkgerrors.ErrAccountInUse
	}

	if _, err = dbTx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, accountID); err != nil {
		if pqCode(err) == codeForeignKeyViolation {
			return pkgerrors.ErrAccountInUse
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Delete", "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("account deleted", "method", "Delete", "account_id", accountID, "user_id", userID)
	return nil
}
