package guard

import (
	"testing"

	"github.com/agroisync/gateway/internal/gateway/domain"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	loading       bool
	authenticated bool
	admin         bool
}

func (f fakeSession) Loading() bool         { return f.loading }
func (f fakeSession) IsAuthenticated() bool { return f.authenticated }
func (f fakeSession) IsAdmin() bool         { return f.admin }

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		sess     Session
		req      domain.Requirement
		path     string
		state    State
		redirect string
	}{
		{
			name:  "loading session renders the placeholder, never content",
			sess:  fakeSession{loading: true},
			req:   domain.DefaultRequirement,
			path:  "/dashboard",
			state: StateChecking,
		},
		{
			name:     "unauthenticated on a protected route goes to login",
			sess:     fakeSession{},
			req:      domain.DefaultRequirement,
			path:     "/dashboard",
			state:    StateRedirecting,
			redirect: "/login?next=%2Fdashboard",
		},
		{
			name:     "unauthenticated on an admin route goes to login, not the admin-mismatch path",
			sess:     fakeSession{},
			req:      domain.AdminRequirement,
			path:     "/admin",
			state:    StateRedirecting,
			redirect: "/login?next=%2Fadmin",
		},
		{
			name:     "authenticated non-admin on an admin route bounces to the dashboard",
			sess:     fakeSession{authenticated: true},
			req:      domain.AdminRequirement,
			path:     "/admin",
			state:    StateRedirecting,
			redirect: "/dashboard",
		},
		{
			name:     "admin on the generic dashboard is escorted to the admin one",
			sess:     fakeSession{authenticated: true, admin: true},
			req:      domain.DefaultRequirement,
			path:     "/dashboard",
			state:    StateRedirecting,
			redirect: "/admin",
		},
		{
			name:  "admin on a non-dashboard page stays put",
			sess:  fakeSession{authenticated: true, admin: true},
			req:   domain.DefaultRequirement,
			path:  "/dashboard/seller",
			state: StateAllowed,
		},
		{
			name:  "admin on the admin route is allowed",
			sess:  fakeSession{authenticated: true, admin: true},
			req:   domain.AdminRequirement,
			path:  "/admin",
			state: StateAllowed,
		},
		{
			name:  "authenticated user on a protected route is allowed",
			sess:  fakeSession{authenticated: true},
			req:   domain.DefaultRequirement,
			path:  "/dashboard",
			state: StateAllowed,
		},
		{
			name:  "public route needs no session state",
			sess:  fakeSession{},
			req:   domain.PublicRequirement,
			path:  "/",
			state: StateAllowed,
		},
		{
			name:     "nil session fails closed",
			sess:     nil,
			req:      domain.PublicRequirement,
			path:     "/dashboard",
			state:    StateRedirecting,
			redirect: "/login?next=%2Fdashboard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(tt.sess, tt.req, tt.path)
			require.Equal(t, tt.state, d.State)
			require.Equal(t, tt.redirect, d.Redirect)
		})
	}
}

func TestEvaluateRuleOrder(t *testing.T) {
	// A session that is simultaneously unauthenticated and non-admin on an
	// admin route must hit the authentication rule first.
	d := Evaluate(fakeSession{}, domain.AdminRequirement, "/admin")
	require.Equal(t, StateRedirecting, d.State)
	require.Contains(t, d.Redirect, domain.RouteLogin)
	require.NotEqual(t, domain.RouteDashboard, d.Redirect)
}

func TestLoginRedirectCarriesNext(t *testing.T) {
	d := Evaluate(fakeSession{}, domain.DefaultRequirement, "/dashboard/transport")
	require.Equal(t, "/login?next=%2Fdashboard%2Ftransport", d.Redirect)

	// Redirecting login to itself would loop.
	d = Evaluate(fakeSession{}, domain.DefaultRequirement, domain.RouteLogin)
	require.Equal(t, domain.RouteLogin, d.Redirect)
}

func TestStateString(t *testing.T) {
	require.Equal(t, "checking", StateChecking.String())
	require.Equal(t, "redirecting", StateRedirecting.String())
	require.Equal(t, "allowed", StateAllowed.String())
}
