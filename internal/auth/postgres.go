package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"dealora.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx so every store method
// works inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
	q  querier
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, q: db}
}

func (s *PGStore) Principals(context.Context) PrincipalStore { return &principalStore{q: s.q} }
func (s *PGStore) Roles(context.Context) RoleStore           { return &roleStore{q: s.q} }
func (s *PGStore) RefreshTokens(context.Context) RefreshTokenStore {
	return &refreshTokenStore{q: s.q}
}

// WithinTx runs fn against a transactional view. Nested calls reuse the
// ambient transaction.
func (s *PGStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if _, ok := s.q.(*sql.Tx); ok {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&PGStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Principal store -----------------------------------------------------------

type principalStore struct{ q querier }

func (s *principalStore) Create(ctx context.Context, p *Principal) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.q.ExecContext(ctx,
		`insert into principals(id, email, password_hash, email_confirmed, country, city)
		 values($1,$2,$3,$4,$5,$6)`,
		p.ID, p.Email, p.PasswordHash, p.EmailConfirmed, p.Country, p.City,
	)
	if err != nil {
		// The unique index on lower(email) is the authoritative guard
		// against concurrent duplicate registration.
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

const principalColumns = `p.id, p.email, p.password_hash, p.email_confirmed,
	p.otp_code, p.otp_expires_at, p.country, p.city, p.created_at, p.updated_at,
	cp.id, cp.first_name, cp.last_name,
	co.id, co.name, co.logo_url, co.industry`

const principalJoins = `from principals p
	left join client_profiles cp on cp.principal_id = p.id
	left join company_profiles co on co.principal_id = p.id`

func (s *principalStore) Find(ctx context.Context, id string) (*Principal, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+principalColumns+` `+principalJoins+` where p.id = $1`, id)
	return scanPrincipal(row)
}

func (s *principalStore) FindByEmail(ctx context.Context, email string) (*Principal, error) {
	row := s.q.QueryRowContext(ctx,
		`select `+principalColumns+` `+principalJoins+` where lower(p.email) = lower($1)`, email)
	return scanPrincipal(row)
}

func scanPrincipal(row *sql.Row) (*Principal, error) {
	var (
		p            Principal
		otpCode      sql.NullString
		otpExpires   sql.NullTime
		clientID     sql.NullString
		firstName    sql.NullString
		lastName     sql.NullString
		companyID    sql.NullString
		companyName  sql.NullString
		logoURL      sql.NullString
		industryName sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.EmailConfirmed,
		&otpCode, &otpExpires, &p.Country, &p.City, &p.CreatedAt, &p.UpdatedAt,
		&clientID, &firstName, &lastName,
		&companyID, &companyName, &logoURL, &industryName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if otpCode.Valid && otpExpires.Valid {
		p.OTP = &OTPChallenge{Code: otpCode.String, ExpiresAt: otpExpires.Time}
	}
	switch {
	case clientID.Valid:
		p.Profile = Profile{
			Kind: ProfileClient,
			Client: &ClientProfile{
				ID:          clientID.String,
				PrincipalID: p.ID,
				FirstName:   firstName.String,
				LastName:    lastName.String,
			},
		}
	case companyID.Valid:
		p.Profile = Profile{
			Kind: ProfileCompany,
			Company: &CompanyProfile{
				ID:          companyID.String,
				PrincipalID: p.ID,
				Name:        companyName.String,
				LogoURL:     logoURL.String,
				Industry:    industryName.String,
			},
		}
	}
	return &p, nil
}

func (s *principalStore) SetOTP(ctx context.Context, id string, otp *OTPChallenge) error {
	res, err := s.q.ExecContext(ctx,
		`update principals set otp_code=$2, otp_expires_at=$3, updated_at=now() where id=$1`,
		id, otp.Code, otp.ExpiresAt,
	)
	if err != nil {
		return err
	}
	return requireRow(res, ErrPrincipalNotFound)
}

func (s *principalStore) ConsumeOTPConfirmEmail(ctx context.Context, id, code string) error {
	res, err := s.q.ExecContext(ctx,
		`update principals
		    set email_confirmed = true, otp_code = null, otp_expires_at = null, updated_at = now()
		  where id = $1 and otp_code = $2 and otp_expires_at > now()`,
		id, code,
	)
	if err != nil {
		return err
	}
	return requireRow(res, ErrInvalidOrExpiredOTP)
}

func (s *principalStore) ConsumeOTPResetPassword(ctx context.Context, id, code, passwordHash string) error {
	res, err := s.q.ExecContext(ctx,
		`update principals
		    set password_hash = $3, otp_code = null, otp_expires_at = null, updated_at = now()
		  where id = $1 and otp_code = $2 and otp_expires_at > now()`,
		id, code, passwordHash,
	)
	if err != nil {
		return err
	}
	return requireRow(res, ErrInvalidOrExpiredOTP)
}

func (s *principalStore) CreateClientProfile(ctx context.Context, p *ClientProfile) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.q.ExecContext(ctx,
		`insert into client_profiles(id, principal_id, first_name, last_name) values($1,$2,$3,$4)`,
		p.ID, p.PrincipalID, p.FirstName, p.LastName,
	)
	return err
}

func (s *principalStore) CreateCompanyProfile(ctx context.Context, p *CompanyProfile) error {
	if p.ID == "" {
		p.ID = ids.New()
	}
	_, err := s.q.ExecContext(ctx,
		`insert into company_profiles(id, principal_id, name, logo_url, industry) values($1,$2,$3,$4,$5)`,
		p.ID, p.PrincipalID, p.Name, p.LogoURL, p.Industry,
	)
	return err
}

func (s *principalStore) Delete(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `delete from principals where id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, ErrPrincipalNotFound)
}

// Role store -----------------------------------------------------------------

type roleStore struct{ q querier }

func (s *roleStore) FindByName(ctx context.Context, name string) (*Role, error) {
	row := s.q.QueryRowContext(ctx,
		`select id, name, created_at from roles where name = $1`, name)
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &role, nil
}

// Create inserts the role, resolving a concurrent creation race in favor of
// the existing row.
func (s *roleStore) Create(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	row := s.q.QueryRowContext(ctx,
		`insert into roles(id, name) values($1,$2)
		 on conflict (name) do update set name = excluded.name
		 returning id, created_at`,
		role.ID, role.Name,
	)
	if err := row.Scan(&role.ID, &role.CreatedAt); err != nil {
		return fmt.Errorf("%w: %v", ErrRoleOperation, err)
	}
	return nil
}

func (s *roleStore) Assign(ctx context.Context, principalID, roleID string) error {
	_, err := s.q.ExecContext(ctx,
		`insert into principal_roles(principal_id, role_id) values($1,$2) on conflict do nothing`,
		principalID, roleID,
	)
	return err
}

func (s *roleStore) HasRole(ctx context.Context, principalID, name string) (bool, error) {
	row := s.q.QueryRowContext(ctx,
		`select exists(
			select 1 from principal_roles pr join roles r on r.id = pr.role_id
			 where pr.principal_id = $1 and r.name = $2)`,
		principalID, name,
	)
	var has bool
	if err := row.Scan(&has); err != nil {
		return false, err
	}
	return has, nil
}

func (s *roleStore) RolesFor(ctx context.Context, principalID string) ([]string, error) {
	rows, err := s.q.QueryContext(ctx,
		`select r.name from roles r
		   join principal_roles pr on pr.role_id = r.id
		  where pr.principal_id = $1 order by r.name`,
		principalID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Refresh token store ---------------------------------------------------------

type refreshTokenStore struct{ q querier }

func (s *refreshTokenStore) Create(ctx context.Context, tok *RefreshToken) error {
	if tok.ID == "" {
		tok.ID = ids.New()
	}
	_, err := s.q.ExecContext(ctx,
		`insert into refresh_tokens(id, principal_id, token, created_at, expires_at)
		 values($1,$2,$3,$4,$5)`,
		tok.ID, tok.PrincipalID, tok.Token, tok.CreatedAt, tok.ExpiresAt,
	)
	return err
}

func (s *refreshTokenStore) Find(ctx context.Context, token string) (*RefreshToken, error) {
	row := s.q.QueryRowContext(ctx,
		`select id, principal_id, token, created_at, expires_at, revoked_at
		   from refresh_tokens where token = $1`, token)
	return scanRefreshToken(row)
}

func (s *refreshTokenStore) FindActiveByPrincipal(ctx context.Context, principalID string) (*RefreshToken, error) {
	row := s.q.QueryRowContext(ctx,
		`select id, principal_id, token, created_at, expires_at, revoked_at
		   from refresh_tokens
		  where principal_id = $1 and revoked_at is null and expires_at > now()
		  order by created_at desc limit 1`, principalID)
	return scanRefreshToken(row)
}

func (s *refreshTokenStore) Revoke(ctx context.Context, token string) error {
	res, err := s.q.ExecContext(ctx,
		`update refresh_tokens set revoked_at = now()
		  where token = $1 and revoked_at is null and expires_at > now()`,
		token,
	)
	if err != nil {
		return err
	}
	return requireRow(res, ErrInactiveToken)
}

func scanRefreshToken(row *sql.Row) (*RefreshToken, error) {
	var (
		tok     RefreshToken
		revoked sql.NullTime
	)
	err := row.Scan(&tok.ID, &tok.PrincipalID, &tok.Token, &tok.CreatedAt, &tok.ExpiresAt, &revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if revoked.Valid {
		t := revoked.Time
		tok.RevokedAt = &t
	}
	return &tok, nil
}

func requireRow(res sql.Result, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel
	}
	return nil
}
