// Package utils provides general-purpose helper utilities
// used across different parts of the application.
// Includes tools for working with context, type-safe keys, content hashing,
// HTTP response writing, HTTP client initialization, session token
// generation and validation, and id generation.
package utils

import (
	"context"
)

// contextKey is a private type for context keys.
// Using a dedicated type instead of a plain string prevents key collisions
// with other packages that may use string-based keys in the context.
type contextKey string

// String returns the string representation of the context key.
// Implements the fmt.Stringer interface.
func (c contextKey) String() string {
	return string(c)
}

// UserIDCtxKey is the key used to store the signed-in user identifier in the
// context.
//
// Example of writing a value to the context:
//
//	ctx := context.WithValue(ctx, utils.UserIDCtxKey, "user-42")
var UserIDCtxKey = contextKey("userID")

// EmailCtxKey is the key used to store the signed-in user's email.
var EmailCtxKey = contextKey("email")

// GetUserIDFromContext retrieves the user identifier from the context.
//
// Returns the user ID and an ok flag:
//   - ok == true : value is found, is a string and is not empty
//   - ok == false: value is missing, empty or has an unexpected type
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(string)
	return userID, ok && userID != ""
}

// GetEmailFromContext retrieves the user email from the context.
func GetEmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(EmailCtxKey).(string)
	return email, ok
}

// WithSession stores the user id and email in ctx.
func WithSession(ctx context.Context, userID, email string) context.Context {
	ctx = context.WithValue(ctx, UserIDCtxKey, userID)
	return context.WithValue(ctx, EmailCtxKey, email)
}
