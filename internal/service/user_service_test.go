package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/MorseWayne/stock_ledger/internal/domain"
)

// Mock UserRepository for testing
type mockUserRepo struct {
	users  map[int64]*domain.User
	nextID int64
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		users:  make(map[int64]*domain.User),
		nextID: 1,
	}
}

func (m *mockUserRepo) Create(ctx context.Context, user *domain.User) error {
	user.ID = m.nextID
	m.nextID++
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *domain.User) error {
	if _, ok := m.users[user.ID]; !ok {
		return errors.New("user not found")
	}
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func TestRegister(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewUserService(userRepo, zap.NewNop())

	user, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Username:       "alice",
		Email:          "Alice@Example.com",
		Password:       "secret123",
		OrganizationID: 3,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if user.Role != domain.UserRoleMember {
		t.Errorf("expected member role, got %s", user.Role)
	}
	if user.OrganizationID == nil || *user.OrganizationID != 3 {
		t.Errorf("expected organization 3, got %v", user.OrganizationID)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("expected lowercased email, got %s", user.Email)
	}
	if !user.IsActive {
		t.Error("expected active user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")); err != nil {
		t.Errorf("password hash does not verify: %v", err)
	}

	// duplicate username rejected
	_, err = svc.Register(context.Background(), &domain.RegisterRequest{
		Username:       "alice",
		Email:          "other@example.com",
		Password:       "secret123",
		OrganizationID: 3,
	})
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists for duplicate username, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewUserService(userRepo, zap.NewNop())

	_, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Username:       "bob",
		Email:          "bob@example.com",
		Password:       "secret123",
		OrganizationID: 1,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"by username", "bob", "secret123", nil},
		{"by email", "bob@example.com", "secret123", nil},
		{"wrong password", "bob", "wrong", ErrInvalidCredentials},
		{"unknown user", "nobody", "secret123", ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Login(context.Background(), &domain.LoginRequest{
				Username: tt.username,
				Password: tt.password,
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Login failed: %v", err)
			}
			if user.Username != "bob" {
				t.Errorf("expected user bob, got %s", user.Username)
			}
		})
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewUserService(userRepo, zap.NewNop())

	user, err := svc.Register(context.Background(), &domain.RegisterRequest{
		Username:       "carol",
		Email:          "carol@example.com",
		Password:       "secret123",
		OrganizationID: 1,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	user.IsActive = false
	_ = userRepo.Update(context.Background(), user)

	_, err = svc.Login(context.Background(), &domain.LoginRequest{
		Username: "carol",
		Password: "secret123",
	})
	if !errors.Is(err, ErrUserInactive) {
		t.Fatalf("expected ErrUserInactive, got %v", err)
	}
}

func TestGetUserByID(t *testing.T) {
	userRepo := newMockUserRepo()
	svc := NewUserService(userRepo, zap.NewNop())

	_, err := svc.GetUserByID(context.Background(), 42)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
