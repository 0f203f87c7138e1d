package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/agroisync/gateway/internal/devauth/domain"
	"github.com/agroisync/gateway/internal/devauth/service"
	"github.com/agroisync/gateway/pkg/authapi"
	"github.com/agroisync/gateway/pkg/httpx"
	"github.com/agroisync/gateway/pkg/slogx"
)

// decodeBody reads a JSON request body into target. A failure is answered
// directly and reported as false.
func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		httpx.WriteFailure(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeServiceError maps a service error to a failure envelope. Known domain
// errors surface their message verbatim; anything else becomes a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	message := "Something went wrong. Please try again."

	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidOTPCode),
		errors.Is(err, service.ErrInvalidChallenge),
		errors.Is(err, service.ErrInvalidToken):
		code = http.StatusUnauthorized
		message = upperFirst(err.Error())
	case errors.Is(err, service.ErrAccountLocked):
		code = http.StatusTooManyRequests
		message = "Account temporarily locked. Please try again later."
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrAlreadyVerified):
		code = http.StatusConflict
		message = upperFirst(err.Error())
	case errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrPasswordConfirmMismatch),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrInvalidRole):
		code = http.StatusBadRequest
		message = upperFirst(err.Error())
	default:
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
	}

	httpx.WriteFailure(w, code, message)
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// apiUser converts a stored account to its wire representation.
func apiUser(a domain.Account) *authapi.User {
	return &authapi.User{
		ID:         a.ID,
		Name:       a.Name,
		Email:      a.Email,
		Role:       a.Role,
		IsAdmin:    a.IsAdmin,
		IsPaid:     a.IsPaid,
		PlanActive: a.PlanActive,
	}
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := rt.login.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if result.Requires2FA {
		httpx.WriteSuccess(w, http.StatusOK, authapi.LoginResponse{
			Requires2FA: true,
			TempToken:   result.TempToken,
			UserID:      result.Account.ID,
		})
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, authapi.LoginResponse{
		User:  apiUser(result.Account),
		Token: result.Token,
	})
}

func (rt *Router) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"userId"`
		TempToken string `json:"tempToken"`
		OTPCode   string `json:"otpCode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := rt.login.VerifyOTP(r.Context(), req.UserID, req.TempToken, req.OTPCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, authapi.SessionResponse{
		User:  apiUser(result.Account),
		Token: result.Token,
	})
}

func (rt *Router) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"userId"`
		TempToken string `json:"tempToken"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := rt.login.SendOTP(r.Context(), req.UserID, req.TempToken); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req authapi.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	account, token, err := rt.accounts.Register(r.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusCreated, authapi.SessionResponse{
		User:                      apiUser(account),
		Token:                     token,
		RequiresEmailVerification: !account.EmailVerified,
	})
}

func (rt *Router) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := rt.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (rt *Router) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := rt.accounts.ResetPassword(r.Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (rt *Router) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := rt.accounts.VerifyEmail(r.Context(), req.Token); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, map[string]string{"status": "verified"})
}

func (rt *Router) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := rt.accounts.ResendVerification(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, map[string]string{"status": "sent"})
}

// bearerToken pulls the session token off the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}

func (rt *Router) handleProfile(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httpx.WriteFailure(w, http.StatusUnauthorized, "Missing authorization token")
		return
	}

	account, err := rt.accounts.Profile(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, apiUser(account))
}

func (rt *Router) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httpx.WriteFailure(w, http.StatusUnauthorized, "Missing authorization token")
		return
	}

	var req authapi.ProfileUpdate
	if !decodeBody(w, r, &req) {
		return
	}

	account, err := rt.accounts.UpdateProfile(r.Context(), token, req.Name, req.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, apiUser(account))
}
