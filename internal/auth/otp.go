package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

// OTPTTL is how long an issued passcode stays valid.
const OTPTTL = 10 * time.Minute

var otpMax = big.NewInt(1_000_000)

// GenerateOTP produces a 6-digit numeric challenge expiring ten minutes
// from now. Issuing a new challenge overwrites any unconsumed prior one.
func GenerateOTP(now time.Time) (*OTPChallenge, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	return &OTPChallenge{
		Code:      fmt.Sprintf("%06d", n.Int64()),
		ExpiresAt: now.Add(OTPTTL),
	}, nil
}

// Accepts reports whether the submitted code matches and the challenge has
// not expired. The comparison is constant time.
func (c *OTPChallenge) Accepts(code string, now time.Time) bool {
	if c == nil || code == "" {
		return false
	}
	if !now.Before(c.ExpiresAt) {
		return false
	}
	if len(code) != len(c.Code) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(c.Code)) == 1
}
