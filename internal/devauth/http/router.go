// Package http exposes the dev auth service over the marketplace auth API
// wire contract: JSON bodies in, {success, message, data} envelopes out.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agroisync/gateway/internal/devauth/service"
	"github.com/agroisync/gateway/pkg/httpx"
	"github.com/agroisync/gateway/pkg/slogx"
)

// Router holds shared dependencies for the dev auth HTTP surface.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	login    *service.LoginService
	accounts *service.AccountService
	logger   *slog.Logger

	startTime time.Time
}

func NewRouter(login *service.LoginService, accounts *service.AccountService, logger *slog.Logger) *Router {
	rt := &Router{
		Mux:       http.NewServeMux(),
		login:     login,
		accounts:  accounts,
		logger:    logger,
		startTime: time.Now(),
	}

	rt.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(rt.logger),
	}

	return rt
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.Chain(rt.Mux, rt.middlewares...).ServeHTTP(w, r)
}

func (rt *Router) ApplyRoutes() {
	// The bodies are JSON, so the email cannot be read by a form-field
	// extractor; all limits here group by client IP.
	rt.Mux.Handle("POST /api/auth/login",
		httpx.Chain(http.HandlerFunc(rt.handleLogin),
			httpx.RateLimitByIP(httpx.LoginLimit),
		),
	)
	rt.Mux.Handle("POST /api/auth/verify-otp",
		httpx.Chain(http.HandlerFunc(rt.handleVerifyOTP),
			httpx.RateLimitByIP(httpx.LoginLimit),
		),
	)
	rt.Mux.Handle("POST /api/auth/send-otp",
		httpx.Chain(http.HandlerFunc(rt.handleSendOTP),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	rt.Mux.Handle("POST /api/auth/register",
		httpx.Chain(http.HandlerFunc(rt.handleRegister),
			httpx.RateLimitByIP(httpx.RegistrationLimit),
		),
	)
	rt.Mux.Handle("POST /api/auth/forgot-password",
		httpx.Chain(http.HandlerFunc(rt.handleForgotPassword),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	rt.Mux.Handle("POST /api/auth/reset-password",
		httpx.Chain(http.HandlerFunc(rt.handleResetPassword),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	rt.Mux.Handle("POST /api/auth/verify-email",
		httpx.Chain(http.HandlerFunc(rt.handleVerifyEmail),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	rt.Mux.Handle("POST /api/auth/resend-verification",
		httpx.Chain(http.HandlerFunc(rt.handleResendVerification),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	rt.Mux.Handle("GET /api/auth/profile", http.HandlerFunc(rt.handleProfile))
	rt.Mux.Handle("PUT /api/auth/profile",
		httpx.Chain(http.HandlerFunc(rt.handleUpdateProfile),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	rt.Mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"uptime": time.Since(rt.startTime).Round(time.Second).String(),
		})
	})
}
