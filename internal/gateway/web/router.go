package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/agroisync/gateway/internal/gateway/domain"
	"github.com/agroisync/gateway/internal/gateway/session"
	"github.com/agroisync/gateway/pkg/httpx"
	"github.com/agroisync/gateway/pkg/slogx"
)

// Router holds shared dependencies for the gateway's HTTP surface.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	registry     *session.Registry
	logger       *slog.Logger
	buildVersion string
	startTime    time.Time
}

func NewRouter(registry *session.Registry, buildVersion string, logger *slog.Logger) *Router {
	rt := &Router{
		Mux:          http.NewServeMux(),
		registry:     registry,
		logger:       logger,
		buildVersion: buildVersion,
		startTime:    time.Now(),
	}

	rt.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(rt.logger),
		rt.sessionMiddleware(),
	}

	return rt
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	httpx.Chain(rt.Mux, rt.middlewares...).ServeHTTP(w, r)
}

func (rt *Router) ApplyRoutes() {
	rt.registerAuth()
	rt.registerPages()
	rt.registerSystem()
}

func (rt *Router) registerAuth() {
	// Credential submission shares the marketplace's historical lockout
	// windows; limited per IP + submitted email.
	rt.Mux.Handle("POST /auth/login",
		httpx.Chain(http.HandlerFunc(rt.handleLogin),
			httpx.RateLimitByIPAndFormField(httpx.LoginLimit, "email"),
		),
	)

	rt.Mux.Handle("POST /auth/verify-otp",
		httpx.Chain(http.HandlerFunc(rt.handleVerifyOTP),
			httpx.RateLimitByIP(httpx.LoginLimit),
		),
	)

	rt.Mux.Handle("POST /auth/send-otp",
		httpx.Chain(http.HandlerFunc(rt.handleSendOTP),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	rt.Mux.Handle("POST /auth/register",
		httpx.Chain(http.HandlerFunc(rt.handleRegister),
			httpx.RateLimitByIP(httpx.RegistrationLimit),
		),
	)

	rt.Mux.Handle("POST /auth/forgot-password",
		httpx.Chain(http.HandlerFunc(rt.handleForgotPassword),
			httpx.RateLimitByIPAndFormField(httpx.ModerateLimit, "email"),
		),
	)

	rt.Mux.Handle("POST /auth/reset-password",
		httpx.Chain(http.HandlerFunc(rt.handleResetPassword),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	rt.Mux.Handle("POST /auth/verify-email",
		httpx.Chain(http.HandlerFunc(rt.handleVerifyEmail),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	rt.Mux.Handle("POST /auth/resend-verification",
		httpx.Chain(http.HandlerFunc(rt.handleResendVerification),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	rt.Mux.Handle("POST /auth/logout", http.HandlerFunc(rt.handleLogout))

	rt.Mux.Handle("GET /auth/profile", http.HandlerFunc(rt.handleProfile))
	rt.Mux.Handle("PUT /auth/profile",
		httpx.Chain(http.HandlerFunc(rt.handleUpdateProfile),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (rt *Router) registerPages() {
	public := func(h http.Handler) http.Handler {
		return httpx.Chain(h, rt.signingMiddleware(), rt.guardMiddleware(domain.PublicRequirement))
	}
	protected := func(h http.Handler) http.Handler {
		return httpx.Chain(h, rt.signingMiddleware(), rt.guardMiddleware(domain.DefaultRequirement))
	}
	admin := func(h http.Handler) http.Handler {
		return httpx.Chain(h, rt.signingMiddleware(), rt.guardMiddleware(domain.AdminRequirement))
	}

	rt.Mux.Handle("GET /{$}", public(rt.page("AgroiSync", "Marketplace home")))
	rt.Mux.Handle("GET /login", public(rt.page("Sign in", "Login form")))
	rt.Mux.Handle("GET /register", public(rt.page("Create account", "Registration form")))

	rt.Mux.Handle("GET /dashboard", protected(rt.page("Dashboard", "Your marketplace overview")))
	rt.Mux.Handle("GET /dashboard/buyer", protected(rt.page("Buyer dashboard", "Orders and offers")))
	rt.Mux.Handle("GET /dashboard/seller", protected(rt.page("Seller dashboard", "Listings and sales")))
	rt.Mux.Handle("GET /dashboard/driver", protected(rt.page("Driver dashboard", "Assigned hauls")))
	rt.Mux.Handle("GET /dashboard/transport", protected(rt.page("Transport dashboard", "Fleet overview")))

	rt.Mux.Handle("GET /admin", admin(rt.page("Admin", "Marketplace administration")))

	rt.Mux.Handle("GET /messages", protected(http.HandlerFunc(rt.handleMessages)))
}

func (rt *Router) registerSystem() {
	rt.Mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"uptime":  time.Since(rt.startTime).Round(time.Second).String(),
			"version": rt.buildVersion,
		})
	})
}
