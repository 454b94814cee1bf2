package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the claim set of the sign-in token presented by the UI.
// The subject carries the user id; Email feeds key derivation.
type SessionClaims struct {
	jwt.RegisteredClaims

	Email string `json:"email"`
}

// Token is a parsed, validated sign-in token.
type Token struct {
	// Token is the underlying parsed JWT.
	*jwt.Token `json:"-"`

	UserID string `json:"-"`
	Email  string `json:"-"`
}
