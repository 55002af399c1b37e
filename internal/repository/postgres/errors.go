package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"github.com/lib/pq"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeLockNotAvailable    = "55P03"
	codeDeadlockDetected    = "40P01"
	codeSerializationFailed = "40001"
)

func pqCode(err error) pq.ErrorCode {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code
	}
	return ""
}

// storeFailure wraps a store error from inside an atomic unit so callers see
// ErrTransactionFailed while the cause stays reachable through errors.As.
func storeFailure(op string, err error) error {
	switch pqCode(err) {
	case codeLockNotAvailable:
		return fmt.Errorf("%w: %s: lock timeout: %w", pkgerrors.ErrTransactionFailed, op, err)
	case codeDeadlockDetected, codeSerializationFailed:
		return fmt.Errorf("%w: %s: concurrent update: %w", pkgerrors.ErrTransactionFailed, op, err)
	}
	return fmt.Errorf("%w: %s: %w", pkgerrors.ErrTransactionFailed, op, err)
}

// rollback aborts dbTx and folds a rollback failure into err.
func rollback(dbTx *sql.Tx, method string, err error) error {
	if rbErr := dbTx.Rollback(); rbErr != nil && !stderrors.Is(rbErr, sql.ErrTxDone) {
		slog.Error("rollback failed", "method", method, "error", rbErr)
		return fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
	}
	return err
}

// setLockTimeout bounds how long row locks in the current unit may be waited on.
func setLockTimeout(ctx context.Context, dbTx *sql.Tx, timeout time.Duration) error {
	if timeout <= 0 {
		return nil
	}
	_, err := dbTx.ExecContext(ctx, `SELECT set_config('lock_timeout', $1, true)`, fmt.Sprintf("%dms", timeout.Milliseconds()))
	return err
}
