package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealora.org/internal/catalog"
	"dealora.org/internal/notify"
	"dealora.org/internal/obs"
)

// User-visible descriptor messages. Credential failures are deliberately
// vague to avoid account enumeration; token and OTP failures name the
// reason since they do not leak account existence.
const (
	MsgSuccess        = "Success Operation"
	MsgBadCredentials = "Email or Password is incorrect!"
	MsgDuplicateEmail = "Email is already registered!"
	MsgInvalidToken   = "Invalid token"
	MsgInactiveToken  = "Inactive token"
	MsgInvalidOTP     = "Invalid or expired code!"
	MsgUnknownEmail   = "Email is not registered!"
	MsgUnauthorized   = "Unauthorized"
)

// Service orchestrates registration, credential verification, token
// issuance, refresh rotation and the OTP flows.
type Service struct {
	store      Store
	signer     *TokenSigner
	dispatcher notify.Dispatcher
	files      catalog.FileStore
	clients    catalog.ClientDeleter
	companies  catalog.CompanyDeleter
	refreshTTL time.Duration
	now        func() time.Time
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithDispatcher sets the outbound mail collaborator.
func WithDispatcher(d notify.Dispatcher) ServiceOption {
	return func(s *Service) error {
		if d != nil {
			s.dispatcher = d
		}
		return nil
	}
}

// WithFileStore sets the asset-upload collaborator used for company logos.
func WithFileStore(fs catalog.FileStore) ServiceOption {
	return func(s *Service) error {
		s.files = fs
		return nil
	}
}

// WithCatalogDeleters sets the account-removal collaborators.
func WithCatalogDeleters(clients catalog.ClientDeleter, companies catalog.CompanyDeleter) ServiceOption {
	return func(s *Service) error {
		s.clients = clients
		s.companies = companies
		return nil
	}
}

// WithRefreshTTL configures the refresh-token horizon.
func WithRefreshTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs the orchestrator.
func NewService(store Store, signer *TokenSigner, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth: store is required")
	}
	if signer == nil {
		return nil, errors.New("auth: token signer is required")
	}
	svc := &Service{
		store:      store,
		signer:     signer,
		dispatcher: notify.LogDispatcher{},
		refreshTTL: DefaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// ClientRegistration is the payload for an individual account.
type ClientRegistration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Country   string
	City      string
	AsAdmin   bool
}

// CompanyRegistration is the payload for a business account. Logo is the
// raw asset; it is persisted by the file collaborator before the company
// record is written.
type CompanyRegistration struct {
	Email       string
	Password    string
	CompanyName string
	Logo        []byte
	LogoName    string
	Industry    string
	Country     string
	City        string
}

// RegisterClient creates a principal with a client profile and issues a
// bearer session. The caller-supplied flag selects ADMIN over USER.
func (s *Service) RegisterClient(ctx context.Context, reg ClientRegistration) (Session, error) {
	role := RoleUser
	if reg.AsAdmin {
		role = RoleAdmin
	}
	return s.register(ctx, registration{
		email:    reg.Email,
		password: reg.Password,
		role:     role,
		kind:     string(ProfileClient),
		country:  reg.Country,
		city:     reg.City,
		createProfile: func(tx Store, principalID string) error {
			return tx.Principals(ctx).CreateClientProfile(ctx, &ClientProfile{
				PrincipalID: principalID,
				FirstName:   strings.TrimSpace(reg.FirstName),
				LastName:    strings.TrimSpace(reg.LastName),
			})
		},
	})
}

// RegisterCompany creates a principal with a company profile, always under
// the COMPANY role. Logo upload failure aborts the whole registration.
func (s *Service) RegisterCompany(ctx context.Context, reg CompanyRegistration) (Session, error) {
	if strings.TrimSpace(reg.CompanyName) == "" {
		return Session{}, fmt.Errorf("%w: company name is required", ErrIdentityCreation)
	}
	if len(reg.Logo) == 0 {
		return Session{}, fmt.Errorf("%w: company logo is required", ErrIdentityCreation)
	}
	if s.files == nil {
		return Session{}, errors.New("auth: file store is not configured")
	}
	return s.register(ctx, registration{
		email:    reg.Email,
		password: reg.Password,
		role:     RoleCompany,
		kind:     string(ProfileCompany),
		country:  reg.Country,
		city:     reg.City,
		createProfile: func(tx Store, principalID string) error {
			// The asset must exist before the company record is written.
			logoURL, err := s.files.Store(ctx, reg.LogoName, reg.Logo)
			if err != nil {
				return fmt.Errorf("store company logo: %w", err)
			}
			return tx.Principals(ctx).CreateCompanyProfile(ctx, &CompanyProfile{
				PrincipalID: principalID,
				Name:        strings.TrimSpace(reg.CompanyName),
				LogoURL:     logoURL,
				Industry:    strings.TrimSpace(reg.Industry),
			})
		},
	})
}

type registration struct {
	email         string
	password      string
	role          string
	kind          string
	country       string
	city          string
	createProfile func(tx Store, principalID string) error
}

func (s *Service) register(ctx context.Context, reg registration) (Session, error) {
	email := normalizeEmail(reg.email)
	if email == "" || !strings.Contains(email, "@") {
		return Session{}, fmt.Errorf("%w: valid email is required", ErrIdentityCreation)
	}
	if err := ValidatePasswordPolicy(reg.password); err != nil {
		return Session{}, err
	}
	hash, err := HashPassword(reg.password)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrIdentityCreation, err)
	}

	var (
		principal *Principal
		refresh   *RefreshToken
		otp       *OTPChallenge
	)
	err = s.store.WithinTx(ctx, func(tx Store) error {
		principals := tx.Principals(ctx)

		// Advisory pre-check; the unique index on lower(email) is the
		// authoritative guard under concurrency.
		if _, err := principals.FindByEmail(ctx, email); err == nil {
			return ErrDuplicateEmail
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		p := &Principal{
			Email:        email,
			PasswordHash: hash,
			Country:      strings.TrimSpace(reg.country),
			City:         strings.TrimSpace(reg.city),
		}
		if err := principals.Create(ctx, p); err != nil {
			return err
		}

		roleID, err := s.ensureRole(ctx, tx, reg.role)
		if err != nil {
			return err
		}
		if err := tx.Roles(ctx).Assign(ctx, p.ID, roleID); err != nil {
			return err
		}

		if err := reg.createProfile(tx, p.ID); err != nil {
			return err
		}

		now := s.now().UTC()
		tokens := tx.RefreshTokens(ctx)
		active, err := tokens.FindActiveByPrincipal(ctx, p.ID)
		switch {
		case err == nil:
			// An active token already exists; reuse it and skip the
			// confirmation mail. The asymmetry is deliberate.
			refresh = active
		case errors.Is(err, ErrNotFound):
			refresh, err = GenerateRefreshToken(p.ID, now, s.refreshTTL)
			if err != nil {
				return err
			}
			if err := tokens.Create(ctx, refresh); err != nil {
				return err
			}
			otp, err = GenerateOTP(now)
			if err != nil {
				return err
			}
			if err := principals.SetOTP(ctx, p.ID, otp); err != nil {
				return err
			}
		default:
			return err
		}

		principal = p
		return nil
	})
	if err != nil {
		return Session{}, err
	}

	roles, err := s.store.Roles(ctx).RolesFor(ctx, principal.ID)
	if err != nil {
		return Session{}, err
	}
	token, expiry, err := s.signer.Sign(principal, roles)
	if err != nil {
		return Session{}, err
	}

	if otp != nil {
		subject, body := notify.ConfirmEmailBody(otp.Code)
		if err := s.dispatcher.Send(ctx, email, subject, body); err != nil {
			// Delivery was attempted; the account still exists and the
			// code can be re-issued, so this does not fail registration.
			obs.LogRequest(map[string]any{
				"level": "warn", "msg": "confirm_email_dispatch_failed",
				"email": email, "error": err.Error(),
			})
		}
		obs.CountOTPIssued("confirm_email")
	}
	obs.CountRegistration(reg.kind)

	return s.session(principal, roles, token, expiry, refresh), nil
}

// Login verifies credentials and issues a bearer session, reusing an
// active refresh token when one exists. Unknown email and wrong password
// are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	principal, err := s.store.Principals(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.CountLogin("failure")
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := VerifyPassword(principal.PasswordHash, password); err != nil {
		obs.CountLogin("failure")
		return Session{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	tokens := s.store.RefreshTokens(ctx)
	refresh, err := tokens.FindActiveByPrincipal(ctx, principal.ID)
	if errors.Is(err, ErrNotFound) {
		refresh, err = GenerateRefreshToken(principal.ID, now, s.refreshTTL)
		if err != nil {
			return Session{}, err
		}
		if err := tokens.Create(ctx, refresh); err != nil {
			return Session{}, err
		}
	} else if err != nil {
		return Session{}, err
	}

	roles, err := s.store.Roles(ctx).RolesFor(ctx, principal.ID)
	if err != nil {
		return Session{}, err
	}
	token, expiry, err := s.signer.Sign(principal, roles)
	if err != nil {
		return Session{}, err
	}
	obs.CountLogin("success")
	return s.session(principal, roles, token, expiry, refresh), nil
}

// Refresh rotates the submitted token: the old one is revoked, never
// reused, and a successor is persisted in the same transaction so a crash
// between the two steps cannot leave zero or two active tokens.
func (s *Service) Refresh(ctx context.Context, token string) (Session, error) {
	var (
		principal *Principal
		successor *RefreshToken
	)
	err := s.store.WithinTx(ctx, func(tx Store) error {
		tokens := tx.RefreshTokens(ctx)
		current, err := tokens.Find(ctx, token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return ErrInvalidToken
			}
			return err
		}
		now := s.now().UTC()
		if !current.IsActive(now) {
			return ErrInactiveToken
		}
		// Compare-and-swap on revoked_at: of two concurrent rotations of
		// the same token, the loser observes ErrInactiveToken here.
		if err := tokens.Revoke(ctx, token); err != nil {
			return err
		}
		successor, err = GenerateRefreshToken(current.PrincipalID, now, s.refreshTTL)
		if err != nil {
			return err
		}
		if err := tokens.Create(ctx, successor); err != nil {
			return err
		}
		principal, err = tx.Principals(ctx).Find(ctx, current.PrincipalID)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			obs.CountRotation("invalid")
		case errors.Is(err, ErrInactiveToken):
			obs.CountRotation("inactive")
		}
		return Session{}, err
	}

	roles, err := s.store.Roles(ctx).RolesFor(ctx, principal.ID)
	if err != nil {
		return Session{}, err
	}
	bearer, expiry, err := s.signer.Sign(principal, roles)
	if err != nil {
		return Session{}, err
	}
	obs.CountRotation("success")
	return s.session(principal, roles, bearer, expiry, successor), nil
}

// Revoke invalidates the submitted token without issuing a replacement.
func (s *Service) Revoke(ctx context.Context, token string) error {
	tokens := s.store.RefreshTokens(ctx)
	current, err := tokens.Find(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}
	if !current.IsActive(s.now().UTC()) {
		return ErrInactiveToken
	}
	return tokens.Revoke(ctx, token)
}

// VerifyEmail consumes the confirmation passcode and marks the email
// confirmed. The code is single use.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	principal, err := s.store.Principals(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}
	if !principal.OTP.Accepts(code, s.now().UTC()) {
		return ErrInvalidOrExpiredOTP
	}
	// Conditional update is the authoritative consume; a concurrent
	// verification of the same code loses here.
	return s.store.Principals(ctx).ConsumeOTPConfirmEmail(ctx, principal.ID, code)
}

// ForgotPassword issues a reset passcode and mails it to the account.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	principal, err := s.store.Principals(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}
	otp, err := GenerateOTP(s.now().UTC())
	if err != nil {
		return err
	}
	if err := s.store.Principals(ctx).SetOTP(ctx, principal.ID, otp); err != nil {
		return err
	}
	subject, body := notify.ResetPasswordBody(otp.Code)
	if err := s.dispatcher.Send(ctx, email, subject, body); err != nil {
		return fmt.Errorf("dispatch reset mail: %w", err)
	}
	obs.CountOTPIssued("reset_password")
	return nil
}

// ResetPassword revalidates the passcode at reset time and writes the new
// hash in the same statement that consumes the code.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	principal, err := s.store.Principals(ctx).FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrPrincipalNotFound
		}
		return err
	}
	if err := ValidatePasswordPolicy(newPassword); err != nil {
		return err
	}
	if !principal.OTP.Accepts(code, s.now().UTC()) {
		return ErrInvalidOrExpiredOTP
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.store.Principals(ctx).ConsumeOTPResetPassword(ctx, principal.ID, code, hash)
}

// AssignRole gives the target principal a role, creating the role lazily.
// Returns an empty string on assignment and a descriptive no-op message
// when the principal already holds the role; callers branch on emptiness.
func (s *Service) AssignRole(ctx context.Context, principalID, roleName string) (string, error) {
	roleName = strings.TrimSpace(strings.ToUpper(roleName))
	if roleName == "" {
		return "", fmt.Errorf("%w: role name is required", ErrRoleOperation)
	}
	if _, err := s.store.Principals(ctx).Find(ctx, principalID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrPrincipalNotFound
		}
		return "", err
	}
	roleID, err := s.ensureRole(ctx, s.store, roleName)
	if err != nil {
		return "", err
	}
	has, err := s.store.Roles(ctx).HasRole(ctx, principalID, roleName)
	if err != nil {
		return "", err
	}
	if has {
		return fmt.Sprintf("principal already holds role %s", roleName), nil
	}
	if err := s.store.Roles(ctx).Assign(ctx, principalID, roleID); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRoleOperation, err)
	}
	return "", nil
}

// RemoveAccount deletes the account of the principal resolved from the
// request identity, delegating catalog cleanup to the kind-specific
// collaborator before removing the identity row.
func (s *Service) RemoveAccount(ctx context.Context) error {
	id, ok := UserIDFromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	principal, err := s.store.Principals(ctx).Find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}

	switch principal.Profile.Kind {
	case ProfileCompany:
		if s.companies == nil {
			return errors.New("auth: company deleter is not configured")
		}
		ok, err := s.companies.DeleteCompany(ctx, principal.Profile.Company.ID)
		if err != nil {
			return fmt.Errorf("delete company catalog: %w", err)
		}
		if !ok {
			return errors.New("auth: company catalog deletion was refused")
		}
	default:
		if s.clients == nil {
			return errors.New("auth: client deleter is not configured")
		}
		ok, err := s.clients.DeleteClient(ctx, principal.ID)
		if err != nil {
			return fmt.Errorf("delete client catalog: %w", err)
		}
		if !ok {
			return errors.New("auth: client catalog deletion was refused")
		}
	}
	// Single commit after delegation; profiles, role links and tokens
	// cascade from the identity row.
	return s.store.Principals(ctx).Delete(ctx, principal.ID)
}

func (s *Service) ensureRole(ctx context.Context, store Store, name string) (string, error) {
	roles := store.Roles(ctx)
	role, err := roles.FindByName(ctx, name)
	if err == nil {
		return role.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}
	created := &Role{Name: name}
	if err := roles.Create(ctx, created); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (s *Service) session(p *Principal, roles []string, token string, expiry time.Time, refresh *RefreshToken) Session {
	return Session{
		Token:              token,
		TokenExpiry:        expiry,
		RefreshToken:       refresh.Token,
		RefreshTokenExpiry: refresh.ExpiresAt,
		Roles:              roles,
		IsAuthenticated:    true,
		Email:              p.Email,
		Message:            MsgSuccess,
	}
}

// FailureMessage maps an expected failure to its descriptor message.
func FailureMessage(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateEmail):
		return MsgDuplicateEmail
	case errors.Is(err, ErrInvalidCredentials):
		return MsgBadCredentials
	case errors.Is(err, ErrInvalidToken):
		return MsgInvalidToken
	case errors.Is(err, ErrInactiveToken):
		return MsgInactiveToken
	case errors.Is(err, ErrInvalidOrExpiredOTP):
		return MsgInvalidOTP
	case errors.Is(err, ErrPrincipalNotFound):
		return MsgUnknownEmail
	case errors.Is(err, ErrUnauthorized):
		return MsgUnauthorized
	case errors.Is(err, ErrIdentityCreation), errors.Is(err, ErrRoleOperation):
		return strings.TrimPrefix(err.Error(), "auth: ")
	default:
		return "Internal error"
	}
}

// FailureSession builds the unauthenticated descriptor for an expected failure.
func FailureSession(email string, err error) Session {
	return Session{Email: email, Message: FailureMessage(err)}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
