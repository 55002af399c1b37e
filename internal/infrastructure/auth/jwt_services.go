package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/honeynil/UPIPaymentService/internal/models"
	pkgerrors "github.com/honeynil/UPIPaymentService/pkg/errors"
)

const issuer = "upi-payment-service"

type JWTService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTService(secret string, ttl time.Duration) *JWTService {
	return &JWTService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *JWTService) TTL() time.Duration {
	return s.ttl
}

// GenerateJWT issues an HS256 token carrying the user's id and payment id.
func (s *JWTService) GenerateJWT(user *models.User) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("JWT secret not set")
	}
	now := s.now()
	claims := models.TokenClaims{
		UserID:    user.ID.String(),
		PaymentID: user.PaymentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// ValidateJWT parses tokenStr and returns its claims. Any failure is
// reported as ErrUnauthenticated.
func (s *JWTService) ValidateJWT(tokenStr string) (*models.TokenClaims, uuid.UUID, error) {
	claims := &models.TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method.Alg())
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return nil, uuid.Nil, fmt.Errorf("%w: %v", pkgerrors.ErrUnauthenticated, err)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%w: invalid user_id in token", pkgerrors.ErrUnauthenticated)
	}
	return claims, userID, nil
}

// SessionKey is the Redis key holding the user's current token.
func SessionKey(userID uuid.UUID) string {
	return fmt.Sprintf("user:%s:token", userID)
}
