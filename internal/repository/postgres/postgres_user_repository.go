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
)

const userTracer = "user-repository"

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) (err error) {
	ctx, done := observability.Track(ctx, userTracer, "CreateUser")
	defer func() { done(err) }()

	if user == nil {
		return fmt.Errorf("%w: user is nil", pkgerrors.ErrInvalidInput)
	}
	if user.Email == "" || user.PaymentID == "" || user.PasswordHash == "" {
		return fmt.Errorf("%w: email, payment id and password are required", pkgerrors.ErrInvalidInput)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	query := `
		INSERT INTO users (id, full_name, email, mobile, payment_id, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		user.ID,
		user.FullName,
		user.Email,
		user.Mobile,
		user.PaymentID,
		user.PasswordHash,
	).Scan(&user.CreatedAt)
	if pqCode(err) == codeUniqueViolation {
		slog.Warn("user already exists", "method", "Create", "email", user.Email, "payment_id", user.PaymentID)
		return pkgerrors.ErrUserAlreadyExists
	}
	if err != nil {
		slog.Error("failed to create user", "method", "Create", "email", user.Email, "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", "method", "Create", "user_id", user.ID, "payment_id", user.PaymentID)
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (_ *models.User, err error) {
	ctx, done := observability.Track(ctx, userTracer, "GetUserByID")
	defer func() { done(err) }()

	query := `SELECT id, full_name, email, mobile, payment_id, password_hash, created_at FROM users WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (_ *models.User, err error) {
	ctx, done := observability.Track(ctx, userTracer, "GetUserByEmail")
	defer func() { done(err) }()

	if email == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", pkgerrors.ErrInvalidInput)
	}
	query := `SELECT id, full_name, email, mobile, payment_id, password_hash, created_at FROM users WHERE email = $1`
	return r.scanOne(ctx, query, email)
}

func (r *UserRepository) scanOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.FullName,
		&user.Email,
		&user.Mobile,
		&user.PaymentID,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, pkgerrors.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
