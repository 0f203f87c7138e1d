// Package policy maps an authenticated user to their canonical landing
// route. Used immediately after authentication completes.
package policy

import (
	"github.com/agroisync/gateway/internal/gateway/domain"
	"github.com/agroisync/gateway/pkg/authapi"
)

// LandingRoute returns where a user lands after authentication. Total over
// every input: unknown or absent roles resolve to the generic dashboard, so
// no role value can leave the user stranded.
func LandingRoute(user *authapi.User) string {
	if user == nil {
		return domain.RouteRoot
	}

	if user.IsAdmin {
		return domain.RouteAdminDashboard
	}

	switch user.Role {
	case domain.RoleBuyer:
		return domain.RouteBuyerDashboard
	case domain.RoleSeller:
		return domain.RouteSellerDashboard
	case domain.RoleDriver:
		return domain.RouteDriverDashboard
	case domain.RoleTransport:
		return domain.RouteTransportDashboard
	default:
		return domain.RouteDashboard
	}
}
