package web

import (
	"net/http"

	"github.com/agroisync/gateway/internal/gateway/domain"
	"github.com/agroisync/gateway/internal/gateway/guard"
	"github.com/agroisync/gateway/internal/gateway/navsec"
	"github.com/agroisync/gateway/pkg/httpx"
	"github.com/agroisync/gateway/pkg/idx"
	"github.com/agroisync/gateway/pkg/slogx"
)

// SessionCookie is the gateway's browser session cookie.
const SessionCookie = "agro_session"

// sessionMiddleware resolves the browser session from the cookie, creating a
// fresh one when absent or unknown, and injects it into the request context.
func (rt *Router) sessionMiddleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var sid idx.ID
			if c, err := r.Cookie(SessionCookie); err == nil {
				if parsed, perr := idx.Parse(c.Value); perr == nil {
					sid = parsed
				}
			}

			m, ok := rt.registry.Get(sid)
			if !ok {
				sid, m = rt.registry.Create(ctx)
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sid.String(),
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			ctx = withSession(ctx, sid, m)
			ctx = slogx.WithSession(ctx, sid.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// signingMiddleware applies the URL signing guard to page navigations.
// Unsigned or mismatched URLs are replaced with a freshly signed one via a
// no-store redirect; login/register paths pass through untouched.
func (rt *Router) signingMiddleware() httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFrom(r.Context())

			// No session at all means the middleware chain is
			// misconfigured; deny rather than render.
			if sess == nil {
				redirectNoStore(w, r, domain.RouteLogin)
				return
			}

			switch navsec.Validate(r.URL, sess.User()) {
			case navsec.VerdictSecure, navsec.VerdictExempt:
				next.ServeHTTP(w, r)
			case navsec.VerdictRegenerate:
				signed := navsec.Sign(r.URL, sess.User())
				slogx.FromContext(r.Context()).Debug("navigation re-signed", "path", r.URL.Path)
				redirectNoStore(w, r, signed.String())
			}
		})
	}
}

// guardMiddleware enforces a route requirement. Only an allowed decision
// renders children; checking and redirecting both keep protected content
// hidden, so nothing flashes before the check completes.
func (rt *Router) guardMiddleware(req domain.Requirement) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := sessionFrom(r.Context())

			decision := guard.Evaluate(sess, req, r.URL.Path)
			switch decision.State {
			case guard.StateAllowed:
				next.ServeHTTP(w, r)
			case guard.StateChecking:
				renderLoading(w)
			case guard.StateRedirecting:
				redirectNoStore(w, r, decision.Redirect)
			default:
				// Unknown state counts as a failed check.
				redirectNoStore(w, r, domain.RouteLogin)
			}
		})
	}
}

// redirectNoStore redirects without letting intermediaries cache the
// response, the server-side equivalent of replacing the history entry.
func redirectNoStore(w http.ResponseWriter, r *http.Request, target string) {
	httpx.NoCache(w)
	http.Redirect(w, r, target, http.StatusFound)
}

// renderLoading is the shared placeholder for checking/redirecting states.
func renderLoading(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Refresh", "1")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<!doctype html><title>AgroiSync</title><p>Loading…</p>"))
}
