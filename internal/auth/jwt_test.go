package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("a@x.com", "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken(token, "test-secret")
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Email != "a@x.com" {
		t.Fatalf("claims.Email = %q, want a@x.com", claims.Email)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("a@x.com", "secret-one", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token, "secret-two"); err == nil {
		t.Fatalf("expected error for wrong secret")
	}
}

func TestTokenExpired(t *testing.T) {
	token, err := GenerateToken("a@x.com", "test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token, "test-secret"); err == nil {
		t.Fatalf("expected error for expired token")
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "hunter2" {
		t.Fatalf("password stored in the clear")
	}
	if !CheckPassword(hash, "hunter2") {
		t.Fatalf("CheckPassword rejected the right password")
	}
	if CheckPassword(hash, "hunter3") {
		t.Fatalf("CheckPassword accepted the wrong password")
	}
}
