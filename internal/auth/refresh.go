package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"dealora.org/internal/ids"
)

// DefaultRefreshTTL is the fixed horizon stamped on every refresh token.
const DefaultRefreshTTL = 120 * 24 * time.Hour

const refreshTokenBytes = 64

// GenerateRefreshToken draws 64 bytes from a cryptographically secure
// source and wraps them into a token owned by the given principal.
func GenerateRefreshToken(principalID string, now time.Time, ttl time.Duration) (*RefreshToken, error) {
	if ttl <= 0 {
		ttl = DefaultRefreshTTL
	}
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &RefreshToken{
		ID:          ids.New(),
		PrincipalID: principalID,
		Token:       base64.StdEncoding.EncodeToString(buf),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}
