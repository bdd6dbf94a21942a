package domain

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestUserContext(t *testing.T) {
	t.Run("UserFromContext returns nil when no user", func(t *testing.T) {
		ctx := context.Background()
		user := UserFromContext(ctx)
		if user != nil {
			t.Errorf("expected nil user, got %+v", user)
		}
	})

	t.Run("UserFromContext returns user when set", func(t *testing.T) {
		ctx := context.Background()
		expected := &User{
			ID:       uuid.New(),
			Email:    "test@example.com",
			Username: "tester",
		}
		ctx = NewContextWithUser(ctx, expected)

		user := UserFromContext(ctx)
		if user == nil {
			t.Fatal("expected user, got nil")
		}
		if user.ID != expected.ID {
			t.Errorf("expected ID %v, got %v", expected.ID, user.ID)
		}
		if user.Email != expected.Email {
			t.Errorf("expected Email %q, got %q", expected.Email, user.Email)
		}
	})

	t.Run("UserIDFromContext returns uuid.Nil when no user", func(t *testing.T) {
		ctx := context.Background()
		id := UserIDFromContext(ctx)
		if id != uuid.Nil {
			t.Errorf("expected uuid.Nil, got %v", id)
		}
	})

	t.Run("MustUser panics when no user", func(t *testing.T) {
		ctx := context.Background()
		defer func() {
			if r := recover(); r == nil {
				t.Error("expected panic, got none")
			}
		}()
		MustUser(ctx)
	})

	t.Run("IsAuthenticated returns false when no user", func(t *testing.T) {
		ctx := context.Background()
		if IsAuthenticated(ctx) {
			t.Error("expected IsAuthenticated to return false")
		}
	})

	t.Run("IsAuthenticated returns true when user set", func(t *testing.T) {
		ctx := context.Background()
		ctx = NewContextWithUser(ctx, &User{ID: uuid.New()})
		if !IsAuthenticated(ctx) {
			t.Error("expected IsAuthenticated to return true")
		}
	})
}

func TestSessionTokenContext(t *testing.T) {
	t.Run("returns empty string when not set", func(t *testing.T) {
		if token := SessionTokenFromContext(context.Background()); token != "" {
			t.Errorf("expected empty token, got %q", token)
		}
	})

	t.Run("returns token when set", func(t *testing.T) {
		ctx := NewContextWithSessionToken(context.Background(), "abc123")
		if token := SessionTokenFromContext(ctx); token != "abc123" {
			t.Errorf("expected %q, got %q", "abc123", token)
		}
	})

	t.Run("user and token coexist", func(t *testing.T) {
		id := uuid.New()
		ctx := NewContextWithSessionToken(context.Background(), "tok")
		ctx = NewContextWithUser(ctx, &User{ID: id})

		if SessionTokenFromContext(ctx) != "tok" {
			t.Error("token lost after adding user")
		}
		if UserIDFromContext(ctx) != id {
			t.Error("user lost after adding token")
		}
	})
}
