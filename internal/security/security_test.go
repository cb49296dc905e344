package security

import (
	"errors"
	"testing"
	"time"
)

func TestShopTokenRejectedAsOperatorToken(t *testing.T) {
	token, err := GenerateShopToken("secret", 42, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := ParseShopToken("secret", token)
	if err != nil {
		t.Fatalf("parse shop token: %v", err)
	}
	if claims.ShopID != 42 {
		t.Fatalf("expected shop 42, got %d", claims.ShopID)
	}
	if _, err := ParseOperatorToken("secret", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for shop token, got %v", err)
	}
}

func TestOperatorTokenValidation(t *testing.T) {
	token, err := GenerateOperatorToken("secret", 7, "ops", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseOperatorToken("other", token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	expired, err := GenerateOperatorToken("secret", 7, "ops", -time.Minute)
	if err != nil {
		t.Fatalf("generate expired: %v", err)
	}
	if _, err := ParseOperatorToken("secret", expired); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestHashPassword(t *testing.T) {
	if _, err := HashPassword("short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(hash, "wrong horse") {
		t.Fatalf("expected wrong password to fail")
	}
}
