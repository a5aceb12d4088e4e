package auth

import (
	"errors"
	"testing"
	"time"

	"commissionflow/internal/domain/workflow"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := "test-secret"
	claims := Claims{UserID: "u1", Username: "jane", Role: "finance"}

	token, err := GenerateToken(secret, claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	parsed, err := ParseToken(secret, token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	if parsed.UserID != claims.UserID || parsed.Role != claims.Role || parsed.Username != claims.Username {
		t.Fatalf("claims mismatch: %+v", parsed)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("one", Claims{UserID: "u1", Role: "finance"}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("two", token); err == nil {
		t.Fatal("expected signature error")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u1", Role: "finance"}, -time.Minute)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestAuthenticateNormalizesRole(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u2", Role: " Director "}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	user, err := Authenticate("secret", token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Role != workflow.RoleDirector || user.UserID != "u2" || user.Token != token {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestAuthenticateLegacyManagerFlag(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u3", Role: "team_lead", IsManager: true}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	user, err := Authenticate("secret", token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if user.Role != workflow.RoleManager {
		t.Fatalf("expected manager, got %s", user.Role)
	}
}

func TestAuthenticateUnknownRole(t *testing.T) {
	token, err := GenerateToken("secret", Claims{UserID: "u4", Role: "auditor"}, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := Authenticate("secret", token); !errors.Is(err, workflow.ErrUnknownRole) {
		t.Fatalf("expected unknown role error, got %v", err)
	}
}
