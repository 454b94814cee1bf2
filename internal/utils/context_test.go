// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package utils

import (
	"context"
	"testing"
)

func TestContextKeyString(t *testing.T) {
	key := contextKey("testKey")
	if key.String() != "testKey" {
		t.Errorf("expected 'testKey', got '%s'", key.String())
	}
}

func TestUserIDCtxKey(t *testing.T) {
	if UserIDCtxKey.String() != "userID" {
		t.Errorf("expected 'userID', got '%s'", UserIDCtxKey.String())
	}
}

func TestGetUserIDFromContext_Success(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserIDCtxKey, "user-42")

	userID, ok := GetUserIDFromContext(ctx)

	if !ok {
		t.Fatal("expected ok=true, got false")
	}
	if userID != "user-42" {
		t.Errorf("expected userID=user-42, got %s", userID)
	}
}

func TestGetUserIDFromContext_Missing(t *testing.T) {
	userID, ok := GetUserIDFromContext(context.Background())

	if ok {
		t.Fatal("expected ok=false, got true")
	}
	if userID != "" {
		t.Errorf("expected empty userID, got %s", userID)
	}
}

func TestGetUserIDFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserIDCtxKey, int64(42))

	_, ok := GetUserIDFromContext(ctx)

	if ok {
		t.Fatal("expected ok=false for wrong type, got true")
	}
}

func TestGetUserIDFromContext_EmptyValue(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserIDCtxKey, "")

	_, ok := GetUserIDFromContext(ctx)

	if ok {
		t.Fatal("expected ok=false for empty user id, got true")
	}
}

func TestGetUserIDFromContext_DifferentKey(t *testing.T) {
	otherKey := contextKey("otherKey")
	ctx := context.WithValue(context.Background(), otherKey, "user-99")

	_, ok := GetUserIDFromContext(ctx)

	if ok {
		t.Fatal("expected ok=false for different key, got true")
	}
}

func TestWithSession(t *testing.T) {
	ctx := WithSession(context.Background(), "u1", "angler@example.com")

	userID, ok := GetUserIDFromContext(ctx)
	if !ok || userID != "u1" {
		t.Fatalf("expected u1, got %q (ok=%v)", userID, ok)
	}

	email, ok := GetEmailFromContext(ctx)
	if !ok || email != "angler@example.com" {
		t.Fatalf("expected angler@example.com, got %q (ok=%v)", email, ok)
	}
}
