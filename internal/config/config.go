// Package config loads runtime settings from the environment, with an
// optional .env file for development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"dealora.org/internal/auth"
	"dealora.org/internal/notify"
)

// Config carries everything main needs to boot the API process.
type Config struct {
	Addr  string
	PGDSN string

	Token      auth.TokenConfig
	RefreshTTL time.Duration

	SMTP        notify.SMTPConfig
	SMTPEnabled bool

	Version string
	Commit  string
}

// Load reads configuration from the environment. A .env file in the
// working directory is merged in when present but never overrides real
// environment variables. Signing misconfiguration is reported here so main
// can refuse to boot instead of failing on the first login.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:  getenv("DEALORA_ADDR", ":8080"),
		PGDSN: os.Getenv("DEALORA_PG_DSN"),
		Token: auth.TokenConfig{
			Secret:   os.Getenv("DEALORA_AUTH_SECRET"),
			Issuer:   getenv("DEALORA_AUTH_ISSUER", "dealora"),
			Audience: getenv("DEALORA_AUTH_AUDIENCE", "dealora-clients"),
		},
		Version: getenv("DEALORA_VERSION", "dev"),
		Commit:  getenv("DEALORA_COMMIT", "unknown"),
	}

	tokenDays, err := getenvInt("DEALORA_TOKEN_TTL_DAYS", 7)
	if err != nil {
		return Config{}, err
	}
	cfg.Token.TTL = time.Duration(tokenDays) * 24 * time.Hour

	refreshDays, err := getenvInt("DEALORA_REFRESH_TTL_DAYS", 120)
	if err != nil {
		return Config{}, err
	}
	cfg.RefreshTTL = time.Duration(refreshDays) * 24 * time.Hour

	if strings.TrimSpace(cfg.Token.Secret) == "" {
		return Config{}, fmt.Errorf("config: DEALORA_AUTH_SECRET is required")
	}
	if strings.TrimSpace(cfg.PGDSN) == "" {
		return Config{}, fmt.Errorf("config: DEALORA_PG_DSN is required")
	}

	if host := os.Getenv("DEALORA_SMTP_HOST"); host != "" {
		port, err := getenvInt("DEALORA_SMTP_PORT", 587)
		if err != nil {
			return Config{}, err
		}
		cfg.SMTP = notify.SMTPConfig{
			Host:     host,
			Port:     port,
			Username: os.Getenv("DEALORA_SMTP_USERNAME"),
			Password: os.Getenv("DEALORA_SMTP_PASSWORD"),
			From:     getenv("DEALORA_SMTP_FROM", "no-reply@dealora.org"),
		}
		cfg.SMTPEnabled = true
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return n, nil
}
