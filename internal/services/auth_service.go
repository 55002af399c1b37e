package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/UPIPaymentService/internal/infrastructure/auth"
	"github.com/honeynil/UPIPaymentService/internal/infrastructure/redis"
	"github.com/honeynil/UPIPaymentService/internal/models"
	"github.com/honeynil/UPIPaymentService/internal/repository"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
	"github.com/honeynil/UPIPaymentService/pkg/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	FullName  string `json:"full_name" validate:"required,min=2"`
	Email     string `json:"email" validate:"required,email"`
	Mobile    string `json:"mobile" validate:"required,min=10,max=15"`
	PaymentID string `json:"upi_id" validate:"required,min=3"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}

func (in *RegisterInput) normalize() error {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.PaymentID = strings.ToLower(strings.TrimSpace(in.PaymentID))
	return validation.Struct(in)
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
}

type authService struct {
	userRepo    repository.UserRepository
	redisClient redis.RedisClient
	jwtService  *auth.JWTService
	bcryptCost  int
}

func NewAuthService(userRepo repository.UserRepository, redisClient redis.RedisClient, jwtService *auth.JWTService, bcryptCost int) *authService {
	return &authService{
		userRepo:    userRepo,
		redisClient: redisClient,
		jwtService:  jwtService,
		bcryptCost:  bcryptCost,
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if err := in.normalize(); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "email", in.Email, "error", err)
		return nil, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	user := &models.User{
		FullName:     in.FullName,
		Email:        in.Email,
		Mobile:       in.Mobile,
		PaymentID:    in.PaymentID,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, pkgerrors.ErrUserAlreadyExists) {
			span.SetStatus(codes.Error, "user already exists")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		slog.Error("failed to create user in DB", "email", in.Email, "error", err)
		return nil, fmt.Errorf("%w: failed to create user", pkgerrors.ErrInternal)
	}

	slog.Info("user registered successfully", "user_id", user.ID, "payment_id", user.PaymentID)
	return user, nil
}

// Login checks the password and stores the new token as the user's only
// live session.
func (s *authService) Login(ctx context.Context, email, password string) (string, error) {
	tracer := otel.Tracer("auth-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", pkgerrors.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, pkgerrors.ErrUserNotFound) {
			slog.Error("failed to login", "email", email, "error", err)
			return "", fmt.Errorf("%w: failed to load user", pkgerrors.ErrInternal)
		}
		slog.Warn("login for unknown email", "email", email)
		return "", pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("invalid password", "user_id", user.ID)
		return "", pkgerrors.ErrInvalidCredentials
	}

	tokenString, err := s.jwtService.GenerateJWT(user)
	if err != nil {
		slog.Error("failed to generate JWT", "error", err)
		return "", fmt.Errorf("%w: failed to generate token", pkgerrors.ErrInternal)
	}

	if err := s.redisClient.Set(ctx, auth.SessionKey(user.ID), tokenString, s.jwtService.TTL()); err != nil {
		slog.Error("failed to cache JWT", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: failed to store session", pkgerrors.ErrInternal)
	}

	slog.Info("user logged in", "user_id", user.ID)
	return tokenString, nil
}
