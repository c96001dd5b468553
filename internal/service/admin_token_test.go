package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	svc := NewAdminTokenService("secret", 1)
	token, expiresAt, err := svc.GenerateJWT(7, "ops")
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}
	claims, err := svc.ParseJWT(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.AdminID != 7 || claims.Username != "ops" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAdminTokenRejectsForeignSecret(t *testing.T) {
	token, _, err := NewAdminTokenService("secret-a", 1).GenerateJWT(1, "ops")
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}
	if _, err := NewAdminTokenService("secret-b", 1).ParseJWT(token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
}

func TestAdminTokenRejectsOtherAlgorithms(t *testing.T) {
	claims := JWTClaims{AdminID: 1, RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token failed: %v", err)
	}
	if _, err := NewAdminTokenService("secret", 1).ParseJWT(token); err == nil {
		t.Fatalf("expected HS512 token to be rejected")
	}
}

func TestAdminTokenRequiresSecret(t *testing.T) {
	if _, _, err := NewAdminTokenService("  ", 1).GenerateJWT(1, "ops"); err != ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
