package httpapi

import (
	"database/sql/driver"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"dealora.org/internal/auth"
	"dealora.org/internal/notify"
)

// newTestAPI wires the full HTTP layer against a mocked database so the
// handler tests exercise real decode/encode, status mapping and cookies.
func newTestAPI(t *testing.T) (*API, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	signer := newTestSigner(t)
	svc, err := auth.NewService(auth.NewPGStore(db), signer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(ReadyProbe{}, "test", svc, signer, notify.NewHub()), mock
}

func newTestSigner(t *testing.T) *auth.TokenSigner {
	t.Helper()
	signer, err := auth.NewTokenSigner(auth.TokenConfig{
		Secret:   "0123456789abcdef0123456789abcdef",
		Issuer:   "dealora",
		Audience: "dealora-clients",
		TTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}
	return signer
}

// principalRows builds the joined row shape returned by the principal
// lookup queries.
func principalRows(id, email, passwordHash string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "email_confirmed",
		"otp_code", "otp_expires_at", "country", "city", "created_at", "updated_at",
		"cp_id", "first_name", "last_name",
		"co_id", "name", "logo_url", "industry",
	}).AddRow(
		id, email, passwordHash, true,
		nil, nil, "KZ", "Almaty", now, now,
		"cp1", "Aizhan", "Bekova",
		nil, nil, nil, nil,
	)
}

func refreshTokenRows(id, principalID, token string, expires time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "principal_id", "token", "created_at", "expires_at", "revoked_at",
	}).AddRow(id, principalID, token, time.Now().UTC(), expires, nil)
}

func sqlmockRows(column string, values ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{column})
	for _, v := range values {
		rows.AddRow(v)
	}
	return rows
}

func sqlmockResult(rowsAffected int64) driver.Result {
	return sqlmock.NewResult(0, rowsAffected)
}
