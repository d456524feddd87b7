package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEALORA_AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DEALORA_PG_DSN", "postgres://localhost/dealora")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Addr)
	}
	if cfg.Token.Issuer != "dealora" || cfg.Token.Audience != "dealora-clients" {
		t.Fatalf("token defaults = %+v", cfg.Token)
	}
	if cfg.Token.TTL != 7*24*time.Hour {
		t.Fatalf("token ttl = %v", cfg.Token.TTL)
	}
	if cfg.RefreshTTL != 120*24*time.Hour {
		t.Fatalf("refresh ttl = %v", cfg.RefreshTTL)
	}
	if cfg.SMTPEnabled {
		t.Fatal("smtp should be disabled without a host")
	}
}

func TestLoadRequiresSecretAndDSN(t *testing.T) {
	t.Setenv("DEALORA_AUTH_SECRET", "")
	t.Setenv("DEALORA_PG_DSN", "postgres://localhost/dealora")
	if _, err := Load(); err == nil {
		t.Fatal("missing secret should fail")
	}

	t.Setenv("DEALORA_AUTH_SECRET", "secret")
	t.Setenv("DEALORA_PG_DSN", "")
	if _, err := Load(); err == nil {
		t.Fatal("missing dsn should fail")
	}
}

func TestLoadRejectsBadTTL(t *testing.T) {
	t.Setenv("DEALORA_AUTH_SECRET", "secret")
	t.Setenv("DEALORA_PG_DSN", "postgres://localhost/dealora")
	t.Setenv("DEALORA_TOKEN_TTL_DAYS", "zero")
	if _, err := Load(); err == nil {
		t.Fatal("non-numeric ttl should fail")
	}

	t.Setenv("DEALORA_TOKEN_TTL_DAYS", "-3")
	if _, err := Load(); err == nil {
		t.Fatal("negative ttl should fail")
	}
}

func TestLoadSMTP(t *testing.T) {
	t.Setenv("DEALORA_AUTH_SECRET", "secret")
	t.Setenv("DEALORA_PG_DSN", "postgres://localhost/dealora")
	t.Setenv("DEALORA_SMTP_HOST", "smtp.example.com")
	t.Setenv("DEALORA_SMTP_USERNAME", "mailer")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.SMTPEnabled {
		t.Fatal("smtp should be enabled")
	}
	if cfg.SMTP.Port != 587 {
		t.Fatalf("smtp port = %d", cfg.SMTP.Port)
	}
	if cfg.SMTP.From != "no-reply@dealora.org" {
		t.Fatalf("smtp from = %q", cfg.SMTP.From)
	}
}
