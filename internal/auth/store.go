package auth

import "context"

// Store describes persistence operations required by the auth subsystem.
// WithinTx runs fn against a transactional view of the same store; the
// refresh-rotation and registration flows rely on it so partial writes can
// never be observed after a failure.
type Store interface {
	Principals(ctx context.Context) PrincipalStore
	Roles(ctx context.Context) RoleStore
	RefreshTokens(ctx context.Context) RefreshTokenStore
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// PrincipalStore manages identity records and their linked profiles.
type PrincipalStore interface {
	Create(ctx context.Context, p *Principal) error
	Find(ctx context.Context, id string) (*Principal, error)
	// FindByEmail compares case-insensitively.
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	SetOTP(ctx context.Context, id string, otp *OTPChallenge) error
	// ConsumeOTPConfirmEmail marks the email confirmed and clears the
	// challenge in one conditional update. Returns ErrInvalidOrExpiredOTP
	// when the stored code does not match or has expired.
	ConsumeOTPConfirmEmail(ctx context.Context, id, code string) error
	// ConsumeOTPResetPassword writes the new hash only if the stored code
	// matches and is unexpired, clearing the challenge in the same
	// statement.
	ConsumeOTPResetPassword(ctx context.Context, id, code, passwordHash string) error
	CreateClientProfile(ctx context.Context, p *ClientProfile) error
	CreateCompanyProfile(ctx context.Context, p *CompanyProfile) error
	Delete(ctx context.Context, id string) error
}

// RoleStore manages named roles and principal assignments.
type RoleStore interface {
	FindByName(ctx context.Context, name string) (*Role, error)
	Create(ctx context.Context, role *Role) error
	Assign(ctx context.Context, principalID, roleID string) error
	HasRole(ctx context.Context, principalID, name string) (bool, error)
	RolesFor(ctx context.Context, principalID string) ([]string, error)
}

// RefreshTokenStore manages the refresh token lifecycle. Tokens are never
// deleted; revocation is a one-way timestamp.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok *RefreshToken) error
	// Find locates a token by its exact opaque string.
	Find(ctx context.Context, token string) (*RefreshToken, error)
	// FindActiveByPrincipal returns the newest active token for the
	// principal, or ErrNotFound.
	FindActiveByPrincipal(ctx context.Context, principalID string) (*RefreshToken, error)
	// Revoke is a compare-and-swap: it stamps revoked_at only when the row
	// is still unrevoked and returns ErrInactiveToken otherwise, so two
	// concurrent rotations of one token cannot both succeed.
	Revoke(ctx context.Context, token string) error
}
