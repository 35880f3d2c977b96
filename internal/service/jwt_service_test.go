package service

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/stock_ledger/internal/config"
	"github.com/MorseWayne/stock_ledger/internal/domain"
)

func testJWTConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "stock-ledger-test"},
		JWT: config.JWTConfig{
			Secret:          "test-secret-key",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
		},
	}
}

func testJWTUser() *domain.User {
	org := int64(5)
	return &domain.User{
		ID:             12,
		Username:       "alice",
		Role:           domain.UserRoleOrgAdmin,
		OrganizationID: &org,
		IsActive:       true,
	}
}

func TestGenerateAndValidateTokenPair(t *testing.T) {
	svc := NewJWTService(testJWTConfig(), zap.NewNop())

	pair, err := svc.GenerateTokenPair(testJWTUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected non-empty tokens")
	}

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken failed: %v", err)
	}
	if claims.UserID != 12 {
		t.Errorf("expected user_id 12, got %d", claims.UserID)
	}
	if claims.Role != domain.UserRoleOrgAdmin {
		t.Errorf("expected org_admin role, got %s", claims.Role)
	}
	if claims.OrganizationID == nil || *claims.OrganizationID != 5 {
		t.Errorf("expected organization 5, got %v", claims.OrganizationID)
	}

	// token types are not interchangeable
	if _, err := svc.ValidateAccessToken(pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for refresh-as-access, got %v", err)
	}
	if _, err := svc.ValidateRefreshToken(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for access-as-refresh, got %v", err)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	svc := NewJWTService(testJWTConfig(), zap.NewNop())
	pair, err := svc.GenerateTokenPair(testJWTUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	otherCfg := testJWTConfig()
	otherCfg.JWT.Secret = "other-secret"
	other := NewJWTService(otherCfg, zap.NewNop())

	if _, err := other.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestValidateToken_WrongIssuer(t *testing.T) {
	svc := NewJWTService(testJWTConfig(), zap.NewNop())
	pair, err := svc.GenerateTokenPair(testJWTUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	otherCfg := testJWTConfig()
	otherCfg.App.Name = "another-app"
	other := NewJWTService(otherCfg, zap.NewNop())

	if _, err := other.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.JWT.AccessTokenTTL = -time.Minute
	svc := NewJWTService(cfg, zap.NewNop())

	pair, err := svc.GenerateTokenPair(testJWTUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	if _, err := svc.ValidateAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRefreshTokenPair(t *testing.T) {
	svc := NewJWTService(testJWTConfig(), zap.NewNop())
	pair, err := svc.GenerateTokenPair(testJWTUser())
	if err != nil {
		t.Fatalf("GenerateTokenPair failed: %v", err)
	}

	newPair, err := svc.RefreshTokenPair(pair.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshTokenPair failed: %v", err)
	}

	claims, err := svc.ValidateAccessToken(newPair.AccessToken)
	if err != nil {
		t.Fatalf("new access token invalid: %v", err)
	}
	if claims.UserID != 12 {
		t.Errorf("expected user_id 12 preserved, got %d", claims.UserID)
	}
	if claims.OrganizationID == nil || *claims.OrganizationID != 5 {
		t.Errorf("expected organization 5 preserved, got %v", claims.OrganizationID)
	}

	// access token cannot refresh
	if _, err := svc.RefreshTokenPair(pair.AccessToken); err == nil {
		t.Error("expected error when refreshing with access token")
	}
}

func TestClaimsTenantContext(t *testing.T) {
	org := int64(3)
	tests := []struct {
		name      string
		claims    *Claims
		wantOrg   int64
		wantSuper bool
	}{
		{
			name:    "member with org",
			claims:  &Claims{UserID: 1, Role: domain.UserRoleMember, OrganizationID: &org},
			wantOrg: 3,
		},
		{
			name:      "super admin without org",
			claims:    &Claims{UserID: 2, Role: domain.UserRoleSuperAdmin},
			wantOrg:   0,
			wantSuper: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := tt.claims.TenantContext()
			if tc.OrganizationID != tt.wantOrg {
				t.Errorf("expected org %d, got %d", tt.wantOrg, tc.OrganizationID)
			}
			if tc.IsSuperAdmin != tt.wantSuper {
				t.Errorf("expected super=%v, got %v", tt.wantSuper, tc.IsSuperAdmin)
			}
			if tc.ActorID == nil || *tc.ActorID != tt.claims.UserID {
				t.Errorf("expected actor %d, got %v", tt.claims.UserID, tc.ActorID)
			}
			if !tc.Valid() {
				t.Error("expected valid tenant context")
			}
		})
	}
}
