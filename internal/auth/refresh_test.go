package auth

import (
	"testing"
	"time"
)

func TestGenerateRefreshToken(t *testing.T) {
	now := time.Now().UTC()
	tok, err := GenerateRefreshToken("p1", now, DefaultRefreshTTL)
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if tok.PrincipalID != "p1" {
		t.Fatalf("principal id = %q", tok.PrincipalID)
	}
	if tok.Token == "" || tok.ID == "" {
		t.Fatal("token and id must be populated")
	}
	if !tok.ExpiresAt.Equal(now.Add(DefaultRefreshTTL)) {
		t.Fatalf("expiry = %v", tok.ExpiresAt)
	}
	if tok.RevokedAt != nil {
		t.Fatal("fresh token must not be revoked")
	}

	other, err := GenerateRefreshToken("p1", now, DefaultRefreshTTL)
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}
	if other.Token == tok.Token {
		t.Fatal("two generated tokens collided")
	}
}

func TestRefreshTokenActivity(t *testing.T) {
	now := time.Now().UTC()
	tok := &RefreshToken{ExpiresAt: now.Add(time.Hour)}

	if !tok.IsActive(now) {
		t.Fatal("unrevoked unexpired token should be active")
	}
	if tok.IsActive(now.Add(time.Hour)) {
		t.Fatal("token at its expiry instant should be inactive")
	}

	revoked := now
	tok.RevokedAt = &revoked
	if tok.IsActive(now) {
		t.Fatal("revoked token should be inactive")
	}
	if !tok.IsExpired(now.Add(2 * time.Hour)) {
		t.Fatal("token past its horizon should report expired")
	}
}
