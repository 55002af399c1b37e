package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims is the payload of an access token issued at login.
type TokenClaims struct {
	UserID    string `json:"user_id"`
	PaymentID string `json:"payment_id"`
	jwt.RegisteredClaims
}
