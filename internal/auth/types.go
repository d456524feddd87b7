package auth

import "time"

// ProfileKind discriminates which profile a principal is linked to. A
// principal carries exactly one populated kind once registration completes.
type ProfileKind string

const (
	ProfileNone    ProfileKind = ""
	ProfileClient  ProfileKind = "client"
	ProfileCompany ProfileKind = "company"
)

// Role names assigned by the registration flows.
const (
	RoleUser    = "USER"
	RoleAdmin   = "ADMIN"
	RoleCompany = "COMPANY"
)

// Principal is the identity record shared by client and company accounts.
type Principal struct {
	ID             string
	Email          string
	PasswordHash   string
	EmailConfirmed bool
	OTP            *OTPChallenge
	Country        string
	City           string
	Profile        Profile
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Profile is a tagged union: exactly one of Client/Company is set when Kind
// is not ProfileNone. Two nullable foreign keys are deliberately not
// modelled here.
type Profile struct {
	Kind    ProfileKind
	Client  *ClientProfile
	Company *CompanyProfile
}

// ClientProfile is the individual-account profile created during client
// registration.
type ClientProfile struct {
	ID          string
	PrincipalID string
	FirstName   string
	LastName    string
}

// CompanyProfile is the business-account profile created during company
// registration. LogoURL points at the externally stored logo asset.
type CompanyProfile struct {
	ID          string
	PrincipalID string
	Name        string
	LogoURL     string
	Industry    string
}

// Role is a named capability tag, created lazily on first assignment.
type Role struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// RefreshToken is owned by exactly one principal. It is never deleted:
// rotation and revocation set RevokedAt and the row stays for audit.
type RefreshToken struct {
	ID          string
	PrincipalID string
	Token       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RevokedAt   *time.Time
}

// IsExpired reports whether the token's horizon has passed. Expiry is
// evaluated lazily; no sweeper mutates expired rows.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsActive reports whether the token can still authorize a refresh call.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && !t.IsExpired(now)
}

// OTPChallenge is the ephemeral one-time passcode stored on the principal.
// Single-use: consumed on successful verification or password reset.
type OTPChallenge struct {
	Code      string
	ExpiresAt time.Time
}

// Session is the bearer session descriptor returned by registration, login
// and refresh. Message is human readable and populated on both success and
// failure.
type Session struct {
	Token              string    `json:"token"`
	TokenExpiry        time.Time `json:"tokenExpiry"`
	RefreshToken       string    `json:"refreshToken"`
	RefreshTokenExpiry time.Time `json:"refreshTokenExpiry"`
	Roles              []string  `json:"roles"`
	IsAuthenticated    bool      `json:"isAuthenticated"`
	Email              string    `json:"email"`
	Message            string    `json:"message"`
}
