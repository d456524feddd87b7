package auth

import "errors"

// Expected, user-triggerable failures. These are returned, never panicked;
// the HTTP layer maps them to client-facing statuses and descriptor
// messages. Store outages and signing misconfiguration propagate as plain
// wrapped errors instead.
var (
	ErrDuplicateEmail      = errors.New("auth: email already registered")
	ErrIdentityCreation    = errors.New("auth: identity creation failed")
	ErrInvalidCredentials  = errors.New("auth: invalid credentials")
	ErrInvalidToken        = errors.New("auth: invalid token")
	ErrInactiveToken       = errors.New("auth: inactive token")
	ErrInvalidOrExpiredOTP = errors.New("auth: invalid or expired otp")
	ErrPrincipalNotFound   = errors.New("auth: principal not found")
	ErrUnauthorized        = errors.New("auth: unauthorized")
	ErrRoleOperation       = errors.New("auth: role operation failed")

	ErrNotFound = errors.New("auth: not found")
)

// IsExpected reports whether err is one of the user-triggerable failures
// that map to an unauthenticated descriptor rather than a 5xx.
func IsExpected(err error) bool {
	for _, known := range []error{
		ErrDuplicateEmail,
		ErrIdentityCreation,
		ErrInvalidCredentials,
		ErrInvalidToken,
		ErrInactiveToken,
		ErrInvalidOrExpiredOTP,
		ErrPrincipalNotFound,
		ErrUnauthorized,
		ErrRoleOperation,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
