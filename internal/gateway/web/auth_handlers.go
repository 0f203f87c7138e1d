package web

import (
	"net/http"

	"github.com/agroisync/gateway/internal/gateway/domain"
	"github.com/agroisync/gateway/internal/gateway/policy"
	"github.com/agroisync/gateway/pkg/authapi"
	"github.com/agroisync/gateway/pkg/httpx"
	"github.com/agroisync/gateway/pkg/slogx"
)

// authResponse is the JSON payload of all /auth/* endpoints. Redirect tells
// the client where to navigate next.
type authResponse struct {
	Redirect                  string        `json:"redirect,omitempty"`
	Requires2FA               bool          `json:"requires2FA,omitempty"`
	RequiresEmailVerification bool          `json:"requiresEmailVerification,omitempty"`
	User                      *authapi.User `json:"user,omitempty"`
}

func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		httpx.WriteFailure(w, http.StatusInternalServerError, "Session unavailable.")
		return
	}

	email := r.FormValue("email")
	password := r.FormValue("password")

	res := sess.Login(r.Context(), email, password)
	if !res.Success {
		httpx.WriteFailure(w, http.StatusUnauthorized, res.Message)
		return
	}

	if res.Requires2FA {
		httpx.WriteSuccess(w, http.StatusOK, authResponse{Requires2FA: true})
		return
	}

	rt.afterAuthentication(r)

	httpx.WriteSuccess(w, http.StatusOK, authResponse{
		Redirect: rt.landingRedirect(r, sess.User()),
		User:     sess.User(),
	})
}

func (rt *Router) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		httpx.WriteFailure(w, http.StatusInternalServerError, "Session unavailable.")
		return
	}

	res := sess.Verify2FA(r.Context(), r.FormValue("otpCode"))
	if !res.Success {
		httpx.WriteFailure(w, http.StatusUnauthorized, res.Message)
		return
	}

	rt.afterAuthentication(r)

	httpx.WriteSuccess(w, http.StatusOK, authResponse{
		Redirect: rt.landingRedirect(r, sess.User()),
		User:     sess.User(),
	})
}

func (rt *Router) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		httpx.WriteFailure(w, http.StatusInternalServerError, "Session unavailable.")
		return
	}

	res := sess.SendOTP(r.Context())
	if !res.Success {
		httpx.WriteFailure(w, http.StatusBadRequest, res.Message)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, authResponse{})
}

func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		httpx.WriteFailure(w, http.StatusInternalServerError, "Session unavailable.")
		return
	}

	res := sess.Register(r.Context(), authapi.RegisterRequest{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Role:     r.FormValue("role"),
	})
	if !res.Success {
		httpx.WriteFailure(w, http.StatusBadRequest, res.Message)
		return
	}

	rt.afterAuthentication(r)

	httpx.WriteSuccess(w, http.StatusOK, authResponse{
		Redirect:                  rt.landingRedirect(r, sess.User()),
		RequiresEmailVerification: res.RequiresEmailVerification,
		User:                      sess.User(),
	})
}

func (rt *Router) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	rt.statelessOp(w, r, func() domain.Result {
		return sessionFrom(r.Context()).ForgotPassword(r.Context(), r.FormValue("email"))
	})
}

func (rt *Router) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	rt.statelessOp(w, r, func() domain.Result {
		return sessionFrom(r.Context()).ResetPassword(r.Context(),
			r.FormValue("token"),
			r.FormValue("password"),
			r.FormValue("confirmPassword"),
		)
	})
}

func (rt *Router) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	rt.statelessOp(w, r, func() domain.Result {
		return sessionFrom(r.Context()).VerifyEmail(r.Context(), r.FormValue("token"))
	})
}

func (rt *Router) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	rt.statelessOp(w, r, func() domain.Result {
		return sessionFrom(r.Context()).ResendVerification(r.Context(), r.FormValue("email"))
	})
}

func (rt *Router) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		// Nothing to clear; still navigate to root.
		httpx.WriteSuccess(w, http.StatusOK, authResponse{Redirect: domain.RouteRoot})
		return
	}

	target := sess.Logout()

	// Drop the registry entry as well; the next navigation starts a fresh
	// anonymous session.
	if id := sessionIDFrom(r.Context()); !id.IsZero() {
		rt.registry.Remove(id)
	}

	httpx.WriteSuccess(w, http.StatusOK, authResponse{Redirect: target})
}

func (rt *Router) handleProfile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil || !sess.IsAuthenticated() {
		httpx.WriteFailure(w, http.StatusUnauthorized, "Not signed in.")
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, authResponse{User: sess.User()})
}

func (rt *Router) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess == nil || !sess.IsAuthenticated() {
		httpx.WriteFailure(w, http.StatusUnauthorized, "Not signed in.")
		return
	}

	var update authapi.ProfileUpdate
	if v := r.FormValue("name"); v != "" {
		update.Name = &v
	}
	if v := r.FormValue("email"); v != "" {
		update.Email = &v
	}

	res := sess.UpdateProfile(r.Context(), update)
	if !res.Success {
		httpx.WriteFailure(w, http.StatusBadRequest, res.Message)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, authResponse{User: sess.User()})
}

// statelessOp runs an operation that leaves the session untouched and maps
// its result onto the response envelope.
func (rt *Router) statelessOp(w http.ResponseWriter, r *http.Request, op func() domain.Result) {
	if sessionFrom(r.Context()) == nil {
		httpx.WriteFailure(w, http.StatusInternalServerError, "Session unavailable.")
		return
	}

	res := op()
	if !res.Success {
		httpx.WriteFailure(w, http.StatusBadRequest, res.Message)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, authResponse{})
}

// afterAuthentication applies post-login bookkeeping: the per-user session
// cap, with the oldest session evicted past the limit.
func (rt *Router) afterAuthentication(r *http.Request) {
	sess := sessionFrom(r.Context())
	if u := sess.User(); u != nil {
		rt.registry.EnforceUserLimit(u.ID)
		slogx.FromContext(r.Context()).Info("user authenticated", "user_id", u.ID, "role", u.Role)
	}
}

// landingRedirect resolves the post-authentication destination: the guarded
// `next` path when the login flow carried one, otherwise the role's
// canonical landing route.
func (rt *Router) landingRedirect(r *http.Request, user *authapi.User) string {
	if next := r.FormValue("next"); next != "" && next[0] == '/' {
		return next
	}
	return policy.LandingRoute(user)
}
