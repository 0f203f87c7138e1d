// Package guard decides whether a navigation target is reachable given the
// current session state and the route's declared requirements.
package guard

import (
	"net/url"

	"github.com/agroisync/gateway/internal/gateway/domain"
)

// State is the guard's position in its check for one navigation.
type State int

const (
	// StateChecking: the session is still loading; render a placeholder,
	// never the protected content.
	StateChecking State = iota
	// StateRedirecting: the check failed; navigate to Decision.Redirect.
	StateRedirecting
	// StateAllowed: render the protected content.
	StateAllowed
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "checking"
	case StateRedirecting:
		return "redirecting"
	case StateAllowed:
		return "allowed"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict for one navigation. Redirect is only set
// in StateRedirecting.
type Decision struct {
	State    State
	Redirect string
}

// Session is the guard's read-only view of the session store.
type Session interface {
	Loading() bool
	IsAuthenticated() bool
	IsAdmin() bool
}

// NextParam carries the originally requested path through the login redirect
// so the login flow can return the user afterward.
const NextParam = "next"

// Evaluate runs the guard rules for a navigation to path under req.
//
// The rule order is load-bearing and must not change: an unauthenticated
// request to an admin-only route redirects to login, not to the
// admin-mismatch path.
func Evaluate(sess Session, req domain.Requirement, path string) Decision {
	// A missing session can only deny. Fail closed, never open.
	if sess == nil {
		return Decision{State: StateRedirecting, Redirect: loginRedirect(path)}
	}

	// Rules are not evaluated until the session finishes loading.
	if sess.Loading() {
		return Decision{State: StateChecking}
	}

	// 1. Authentication required but absent.
	if req.RequireAuth && !sess.IsAuthenticated() {
		return Decision{State: StateRedirecting, Redirect: loginRedirect(path)}
	}

	// 2. Admin required but the user is not one.
	if req.RequireAdmin && !sess.IsAdmin() {
		return Decision{State: StateRedirecting, Redirect: domain.RouteDashboard}
	}

	// 3. Admins are never left on the generic landing page.
	if !req.RequireAdmin && sess.IsAdmin() && path == domain.RouteDashboard {
		return Decision{State: StateRedirecting, Redirect: domain.RouteAdminDashboard}
	}

	return Decision{State: StateAllowed}
}

// loginRedirect builds the login route carrying the originally requested
// path.
func loginRedirect(path string) string {
	if path == "" || path == domain.RouteLogin {
		return domain.RouteLogin
	}
	return domain.RouteLogin + "?" + NextParam + "=" + url.QueryEscape(path)
}
