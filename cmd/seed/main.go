// Command seed creates a demo user with one funded settlement account.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"

	"github.com/honeynil/UPIPaymentService/internal/config"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/observability"
	"github.com/honeynil/UPIPaymentService/internal/models"
	core "github.com/honeynil/UPIPaymentService/internal/repository/postgres"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

const (
	seedEmail    = "test@example.com"
	seedPassword = "Password123!"
)

var seedBalance = decimal.RequireFromString("10000.00")

func main() {
	cfg := config.Load()
	observability.InitLogger(cfg.LogLevel)

	if err := run(context.Background(), cfg); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := core.Migrate(ctx, db); err != nil {
		return err
	}

	userRepo := core.NewUserRepository(db)
	accountRepo := core.NewAccountRepository(db)

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), cfg.BcryptCost)
	if err != nil {
		return err
	}
	user := &models.User{
		FullName:     "Test User",
		Email:        seedEmail,
		Mobile:       "9999999999",
		PaymentID:    "test@upi",
		PasswordHash: string(hash),
	}
	err = userRepo.Create(ctx, user)
	if errors.Is(err, pkgerrors.ErrUserAlreadyExists) {
		slog.Info("seed user already exists, skipping", "email", seedEmail)
		return nil
	}
	if err != nil {
		return err
	}

	account := &models.Account{
		UserID:        user.ID,
		Institution:   "Example Bank",
		AccountNumber: "123456789012",
		RoutingCode:   "EXAMP0001",
	}
	if err := accountRepo.Create(ctx, account); err != nil {
		return err
	}
	if _, err := accountRepo.Deposit(ctx, user.ID, account.ID, seedBalance); err != nil {
		return err
	}

	slog.Info("seed complete", "email", seedEmail, "password", seedPassword, "payment_id", user.PaymentID, "balance", seedBalance.StringFixed(models.MoneyScale))
	return nil
}
