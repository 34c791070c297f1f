package authpw

import (
	"context"
	"errors"
	"testing"

	"thesisdesk/api/internal/store"
)

// mockUserStore is a mock implementation of UserStore for testing
type mockUserStore struct {
	users map[string]store.User // keyed by email
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]store.User)}
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if user, ok := m.users[email]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *mockUserStore) add(t *testing.T, id int64, email, password, role string) {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	m.users[email] = store.User{ID: id, Email: email, PasswordHash: hash, Role: role}
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	mockStore := newMockUserStore()
	mockStore.add(t, 42, "papadaki@upatras.gr", "kalimera1", "professor")
	svc := NewService(mockStore)

	t.Run("successful sign in", func(t *testing.T) {
		user, err := svc.SignIn(ctx, SignInRequest{
			Email:    "papadaki@upatras.gr",
			Password: "kalimera1",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != 42 {
			t.Errorf("expected user 42, got %d", user.ID)
		}
		if user.Role != "professor" {
			t.Errorf("expected role professor, got %s", user.Role)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{
			Email:    "papadaki@upatras.gr",
			Password: "wrongpassword",
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("non-existent user", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{
			Email:    "nobody@upatras.gr",
			Password: "kalimera1",
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.SignIn(ctx, SignInRequest{})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestHashPassword(t *testing.T) {
	t.Run("rejects short passwords", func(t *testing.T) {
		if _, err := HashPassword("short"); err == nil {
			t.Error("expected error for short password")
		}
	})

	t.Run("produces verifiable hashes", func(t *testing.T) {
		hash, err := HashPassword("longenough")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if hash == "longenough" {
			t.Error("hash must not equal the plaintext")
		}

		mockStore := newMockUserStore()
		mockStore.users["s@upatras.gr"] = store.User{ID: 7, Email: "s@upatras.gr", PasswordHash: hash, Role: "student"}
		svc := NewService(mockStore)

		if _, err := svc.SignIn(context.Background(), SignInRequest{Email: "s@upatras.gr", Password: "longenough"}); err != nil {
			t.Errorf("expected hash to verify: %v", err)
		}
	})
}
