package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dealora.org/internal/auth"
)

func TestLoginSuccessSetsRefreshCookie(t *testing.T) {
	api, mock := newTestAPI(t)
	hash, err := auth.HashPassword("sturdy-pass1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	expires := time.Now().UTC().Add(auth.DefaultRefreshTTL)
	mock.ExpectQuery("from principals p").WithArgs("user@example.com").
		WillReturnRows(principalRows("p1", "user@example.com", hash))
	mock.ExpectQuery("from refresh_tokens").WithArgs("p1").
		WillReturnRows(refreshTokenRows("t1", "p1", "opaque-refresh", expires))
	mock.ExpectQuery("select r.name from roles").WithArgs("p1").
		WillReturnRows(sqlmockRows("name", "USER"))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email":"user@example.com","password":"sturdy-pass1"}`))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var sess auth.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if !sess.IsAuthenticated || sess.Message != auth.MsgSuccess {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.RefreshToken != "opaque-refresh" {
		t.Fatalf("refresh token = %q", sess.RefreshToken)
	}
	if sess.Token == "" {
		t.Fatal("bearer token missing")
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refresh_token" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("refresh_token cookie not set")
	}
	if !cookie.HttpOnly || !cookie.Secure {
		t.Fatalf("cookie must be HttpOnly and Secure: %+v", cookie)
	}
	if cookie.Value != "opaque-refresh" {
		t.Fatalf("cookie value = %q", cookie.Value)
	}
}

func TestLoginUnknownEmailIsGeneric(t *testing.T) {
	api, mock := newTestAPI(t)
	mock.ExpectQuery("from principals p").WithArgs("ghost@example.com").
		WillReturnRows(sqlmockRows("id"))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email":"ghost@example.com","password":"whatever1"}`))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var sess auth.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.IsAuthenticated {
		t.Fatal("failure descriptor must not be authenticated")
	}
	if sess.Message != auth.MsgBadCredentials {
		t.Fatalf("message = %q", sess.Message)
	}
}

func TestLoginRejectsWrongMethod(t *testing.T) {
	api, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/login", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("Allow = %q", allow)
	}
}

func TestLoginRejectsMalformedBody(t *testing.T) {
	api, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRefreshPrefersCookie(t *testing.T) {
	api, mock := newTestAPI(t)
	expires := time.Now().UTC().Add(auth.DefaultRefreshTTL)

	mock.ExpectBegin()
	mock.ExpectQuery("from refresh_tokens where token").WithArgs("cookie-token").
		WillReturnRows(refreshTokenRows("t1", "p1", "cookie-token", expires))
	mock.ExpectExec("update refresh_tokens set revoked_at").WithArgs("cookie-token").
		WillReturnResult(sqlmockResult(1))
	mock.ExpectExec("insert into refresh_tokens").
		WillReturnResult(sqlmockResult(1))
	mock.ExpectQuery("from principals p").WithArgs("p1").
		WillReturnRows(principalRows("p1", "user@example.com", "hash"))
	mock.ExpectCommit()
	mock.ExpectQuery("select r.name from roles").WithArgs("p1").
		WillReturnRows(sqlmockRows("name", "USER"))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: "cookie-token"})
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var sess auth.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.RefreshToken == "" || sess.RefreshToken == "cookie-token" {
		t.Fatalf("rotation must issue a new token, got %q", sess.RefreshToken)
	}
}

func TestRefreshUnknownTokenIs401(t *testing.T) {
	api, mock := newTestAPI(t)
	mock.ExpectBegin()
	mock.ExpectQuery("from refresh_tokens where token").WithArgs("missing").
		WillReturnRows(sqlmockRows("id"))
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh",
		strings.NewReader(`{"refreshToken":"missing"}`))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	var sess auth.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.Message != auth.MsgInvalidToken {
		t.Fatalf("message = %q", sess.Message)
	}
}

func TestRefreshWithoutTokenIs400(t *testing.T) {
	api, _ := newTestAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/refresh", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRegisterClientDuplicateEmailIs409(t *testing.T) {
	api, mock := newTestAPI(t)
	hash, _ := auth.HashPassword("x")

	mock.ExpectBegin()
	mock.ExpectQuery("from principals p").WithArgs("dup@example.com").
		WillReturnRows(principalRows("p1", "dup@example.com", hash))
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register/client",
		strings.NewReader(`{"email":"dup@example.com","password":"sturdy-pass1","firstName":"A","lastName":"B"}`))
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var sess auth.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.Message != auth.MsgDuplicateEmail {
		t.Fatalf("message = %q", sess.Message)
	}
}

func TestAssignRoleRequiresAdmin(t *testing.T) {
	api, _ := newTestAPI(t)
	signer := newTestSigner(t)

	token, _, err := signer.Sign(&auth.Principal{ID: "p1", Email: "user@example.com"}, []string{"USER"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/roles/assign",
		strings.NewReader(`{"principalId":"p2","role":"ADMIN"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAccountRequiresDelete(t *testing.T) {
	api, _ := newTestAPI(t)
	signer := newTestSigner(t)
	token, _, err := signer.Sign(&auth.Principal{ID: "p1", Email: "user@example.com"}, []string{"USER"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/account", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}
