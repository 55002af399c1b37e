package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/honeynil/UPIPaymentService/internal/repository/postgres"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountRowColumns = []string{"id", "user_id", "institution", "account_number", "routing_code", "balance", "created_at"}

func TestAccountRepository_Resolve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewAccountRepository(db)
	ctx := context.Background()

	t.Run("PicksOldestAccount", func(t *testing.T) {
		accountID := uuid.New()
		userID := uuid.New()
		createdAt := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE u.payment_id = $1 ORDER BY a.created_at ASC, a.id ASC LIMIT 1`)).
			WithArgs("bob@upi").
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountID.String(), userID.String(), "Example Bank", "123456789012", "EXAMP0001", "250.50", createdAt))

		acc, err := repo.Resolve(ctx, "bob@upi")
		require.NoError(t, err)
		assert.Equal(t, accountID, acc.ID)
		assert.Equal(t, userID, acc.UserID)
		assert.Equal(t, "250.5", acc.Balance.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE u.payment_id = $1`)).
			WithArgs("ghost@upi").
			WillReturnError(sql.ErrNoRows)

		acc, err := repo.Resolve(ctx, "ghost@upi")
		assert.Nil(t, acc)
		assert.ErrorIs(t, err, pkgerrors.ErrPaymentIDNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE u.payment_id = $1`)).
			WithArgs("bob@upi").
			WillReturnError(fmt.Errorf("database error"))

		_, err := repo.Resolve(ctx, "bob@upi")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to resolve payment id")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_DefaultForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewAccountRepository(db)
	ctx := context.Background()
	userID := uuid.New()

	t.Run("NoLinkedAccount", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`WHERE a.user_id = $1 ORDER BY a.created_at ASC, a.id ASC LIMIT 1`)).
			WithArgs(userID).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.DefaultForUser(ctx, userID)
		assert.ErrorIs(t, err, pkgerrors.ErrNoLinkedAccount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewAccountRepository(db)
	ctx := context.Background()

	t.Run("MissingFields", func(t *testing.T) {
		err := repo.Create(ctx, &models.Account{UserID: uuid.New(), Institution: "Example Bank"})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})

	t.Run("Success", func(t *testing.T) {
		acc := &models.Account{
			UserID:        uuid.New(),
			Institution:   "Example Bank",
			AccountNumber: "123456789012",
			RoutingCode:   "EXAMP0001",
		}
		createdAt := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO accounts (id, user_id, institution, account_number, routing_code, balance)`)).
			WithArgs(sqlmock.AnyArg(), acc.UserID, acc.Institution, acc.AccountNumber, acc.RoutingCode).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(createdAt))

		err := repo.Create(ctx, acc)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, acc.ID)
		assert.True(t, acc.Balance.IsZero())
		assert.Equal(t, createdAt, acc.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_Deposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewAccountRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	accountID := uuid.New()

	t.Run("InvalidAmount", func(t *testing.T) {
		_, err := repo.Deposit(ctx, userID, accountID, money("-1"))
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)
	})

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SET balance = balance + $1 WHERE a.id = $2 AND a.user_id = $3`)).
			WithArgs(money("500.00"), accountID, userID).
			WillReturnRows(sqlmock.NewRows(accountRowColumns).
				AddRow(accountID.String(), userID.String(), "Example Bank", "1", "R", "600.00", time.Now()))

		acc, err := repo.Deposit(ctx, userID, accountID, money("500.00"))
		require.NoError(t, err)
		assert.True(t, money("600").Equal(acc.Balance))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotOwned", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta(`SET balance = balance + $1`)).
			WithArgs(money("5.00"), accountID, userID).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.Deposit(ctx, userID, accountID, money("5.00"))
		assert.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAccountRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := postgres.NewAccountRepository(db)
	ctx := context.Background()
	userID := uuid.New()
	accountID := uuid.New()

	lockSQL := regexp.QuoteMeta(`SELECT id FROM accounts WHERE id = $1 AND user_id = $2 FOR UPDATE`)
	pendingSQL := regexp.QuoteMeta(`SELECT EXISTS`)
	deleteSQL := regexp.QuoteMeta(`DELETE FROM accounts WHERE id = $1`)

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockSQL).WithArgs(accountID, userID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(accountID.String()))
		mock.ExpectQuery(pendingSQL).WithArgs(accountID, models.StatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(deleteSQL).WithArgs(accountID).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.Delete(ctx, userID, accountID))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("PendingRequestBlocksDelete", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockSQL).WithArgs(accountID, userID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(accountID.String()))
		mock.ExpectQuery(pendingSQL).WithArgs(accountID, models.StatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Delete(ctx, userID, accountID), pkgerrors.ErrAccountInUse)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("SettledHistoryBlocksDelete", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockSQL).WithArgs(accountID, userID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(accountID.String()))
		mock.ExpectQuery(pendingSQL).WithArgs(accountID, models.StatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec(deleteSQL).WithArgs(accountID).WillReturnError(&pq.Error{Code: "23503"})
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Delete(ctx, userID, accountID), pkgerrors.ErrAccountInUse)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(lockSQL).WithArgs(accountID, userID).WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		assert.ErrorIs(t, repo.Delete(ctx, userID, accountID), pkgerrors.ErrAccountNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
