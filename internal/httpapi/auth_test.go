package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"partsledger/backend/internal/domain"
)

func TestAddUserStoresPasswordHash(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour)
	if err := manager.AddUser("Admin", "admin123", domain.RoleAdmin); err != nil {
		t.Fatalf("add user failed: %v", err)
	}

	stored := manager.users["admin"].password
	if stored == "admin123" {
		t.Fatalf("expected password to be hashed")
	}
	if !strings.HasPrefix(stored, "$2") {
		t.Fatalf("expected bcrypt hash, got %s", stored)
	}

	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: " ADMIN ", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleAdmin || resp.AccessToken == "" {
		t.Fatalf("unexpected login response %+v", resp)
	}
}

func TestAddUserAcceptsPrehashedPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("viewer-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	manager := NewAuthManager("test-secret", time.Hour)
	if err := manager.AddUser("clerk", string(hash), domain.RoleViewer); err != nil {
		t.Fatalf("add user failed: %v", err)
	}
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "clerk", Password: "viewer-pass"}); err != nil {
		t.Fatalf("login with prehashed password failed: %v", err)
	}
}

func TestAddUserRejectsUnknownRole(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour)
	if err := manager.AddUser("root", "secret", "superuser"); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour)
	if err := manager.AddUser("admin", "admin123", domain.RoleAdmin); err != nil {
		t.Fatalf("add user failed: %v", err)
	}
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "nope"}); err == nil {
		t.Fatalf("expected wrong password to fail")
	}
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "ghost", Password: "admin123"}); err == nil {
		t.Fatalf("expected unknown user to fail")
	}
}

func TestParseTokenRoundTripAndExpiry(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour)
	if err := manager.AddUser("admin", "admin123", domain.RoleAdmin); err != nil {
		t.Fatalf("add user failed: %v", err)
	}
	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "admin", Password: "admin123"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}

	manager.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := manager.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}

	other := NewAuthManager("other-secret", time.Hour)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}
