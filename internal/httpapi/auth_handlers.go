package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"dealora.org/internal/audit"
	"dealora.org/internal/auth"
)

const refreshCookieName = "refresh_token"

const maxLogoBytes = 5 << 20

type clientRegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Country   string `json:"country"`
	City      string `json:"city"`
	AsAdmin   bool   `json:"asAdmin"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"newPassword"`
}

type assignRoleRequest struct {
	PrincipalID string `json:"principalId"`
	Role        string `json:"role"`
}

func (a *API) handleRegisterClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req clientRegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := a.svc.RegisterClient(r.Context(), auth.ClientRegistration{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Country:   req.Country,
		City:      req.City,
		AsAdmin:   req.AsAdmin,
	})
	if err != nil {
		a.writeAuthFailure(w, r, req.Email, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register.client", map[string]any{
		"email": sess.Email,
		"roles": sess.Roles,
	})
	a.writeSession(w, sess, http.StatusCreated)
}

// handleRegisterCompany accepts multipart/form-data because the logo
// travels with the registration payload.
func (a *API) handleRegisterCompany(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, "expected multipart form: "+err.Error())
		return
	}

	reg := auth.CompanyRegistration{
		Email:       r.FormValue("email"),
		Password:    r.FormValue("password"),
		CompanyName: r.FormValue("companyName"),
		Industry:    r.FormValue("industry"),
		Country:     r.FormValue("country"),
		City:        r.FormValue("city"),
	}

	file, header, err := r.FormFile("logo")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "logo file is required")
		return
	}
	defer file.Close()
	blob, err := io.ReadAll(io.LimitReader(file, maxLogoBytes+1))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "could not read logo")
		return
	}
	if len(blob) > maxLogoBytes {
		writeError(w, r, http.StatusRequestEntityTooLarge, "logo exceeds size limit")
		return
	}
	reg.Logo = blob
	reg.LogoName = header.Filename

	sess, err := a.svc.RegisterCompany(r.Context(), reg)
	if err != nil {
		a.writeAuthFailure(w, r, reg.Email, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register.company", map[string]any{
		"email":   sess.Email,
		"company": reg.CompanyName,
	})
	a.writeSession(w, sess, http.StatusCreated)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := a.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.writeAuthFailure(w, r, req.Email, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{"email": sess.Email})
	a.writeSession(w, sess, http.StatusOK)
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token := a.refreshTokenFrom(r)
	if token == "" {
		writeError(w, r, http.StatusBadRequest, "refresh token is required")
		return
	}

	sess, err := a.svc.Refresh(r.Context(), token)
	if err != nil {
		a.writeAuthFailure(w, r, "", err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{"email": sess.Email})
	a.writeSession(w, sess, http.StatusOK)
}

func (a *API) handleRevoke(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	token := a.refreshTokenFrom(r)
	if token == "" {
		writeError(w, r, http.StatusBadRequest, "refresh token is required")
		return
	}

	if err := a.svc.Revoke(r.Context(), token); err != nil {
		a.writeAuthFailure(w, r, "", err)
		return
	}

	clearRefreshCookie(w)
	_ = audit.LogEvent(r.Context(), "auth.revoke", nil)
	writeJSON(w, http.StatusOK, map[string]any{"message": auth.MsgSuccess})
}

func (a *API) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.svc.VerifyEmail(r.Context(), req.Email, req.Code); err != nil {
		a.writeAuthFailure(w, r, req.Email, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.email.confirmed", map[string]any{"email": req.Email})
	writeJSON(w, http.StatusOK, map[string]any{"message": auth.MsgSuccess})
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		a.writeAuthFailure(w, r, req.Email, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.password.forgot", map[string]any{"email": req.Email})
	writeJSON(w, http.StatusOK, map[string]any{"message": auth.MsgSuccess})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.svc.ResetPassword(r.Context(), req.Email, req.Code, req.NewPassword); err != nil {
		a.writeAuthFailure(w, r, req.Email, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.password.reset", map[string]any{"email": req.Email})
	writeJSON(w, http.StatusOK, map[string]any{"message": auth.MsgSuccess})
}

func (a *API) handleAssignRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !auth.HasRole(r.Context(), auth.RoleAdmin) {
		writeError(w, r, http.StatusForbidden, "admin role required")
		return
	}
	var req assignRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := a.svc.AssignRole(r.Context(), strings.TrimSpace(req.PrincipalID), req.Role)
	if err != nil {
		a.writeAuthFailure(w, r, "", err)
		return
	}
	if msg != "" {
		writeJSON(w, http.StatusOK, map[string]any{"message": msg})
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.role.assigned", map[string]any{
		"principal_id": req.PrincipalID,
		"role":         strings.ToUpper(strings.TrimSpace(req.Role)),
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": auth.MsgSuccess})
}

func (a *API) handleAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}

	// Audit before deletion so the principal id is still resolvable.
	_ = audit.LogEvent(r.Context(), "auth.account.removed", nil)

	if err := a.svc.RemoveAccount(r.Context()); err != nil {
		a.writeAuthFailure(w, r, "", err)
		return
	}

	clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"message": auth.MsgSuccess})
}

// --- session plumbing ---

// writeSession sets the refresh cookie and returns the descriptor. The
// refresh token also appears in the body for non-browser clients.
func (a *API) writeSession(w http.ResponseWriter, sess auth.Session, code int) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    sess.RefreshToken,
		Path:     "/v1/auth",
		Expires:  sess.RefreshTokenExpiry,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, code, sess)
}

func clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/v1/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

// refreshTokenFrom prefers the HTTP-only cookie and falls back to the JSON
// body for non-browser clients.
func (a *API) refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(refreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	var req refreshRequest
	if err := decodeJSON(nil, r, &req); err == nil {
		return strings.TrimSpace(req.RefreshToken)
	}
	return ""
}

func (a *API) writeAuthFailure(w http.ResponseWriter, r *http.Request, email string, err error) {
	if !auth.IsExpected(err) {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, statusFor(err), auth.FailureSession(email, err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, auth.ErrIdentityCreation), errors.Is(err, auth.ErrInvalidOrExpiredOTP),
		errors.Is(err, auth.ErrRoleOperation):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInactiveToken), errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrPrincipalNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
