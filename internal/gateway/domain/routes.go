package domain

// Canonical gateway routes. The redirect policy and the route guard both
// depend on these exact values.
const (
	RouteRoot               = "/"
	RouteLogin              = "/login"
	RouteRegister           = "/register"
	RouteDashboard          = "/dashboard"
	RouteAdminDashboard     = "/admin"
	RouteBuyerDashboard     = "/dashboard/buyer"
	RouteSellerDashboard    = "/dashboard/seller"
	RouteDriverDashboard    = "/dashboard/driver"
	RouteTransportDashboard = "/dashboard/transport"
)

// Marketplace roles with dedicated dashboards. Any other role value lands on
// the generic dashboard.
const (
	RoleBuyer     = "buyer"
	RoleSeller    = "seller"
	RoleDriver    = "driver"
	RoleTransport = "transport"
)

// Requirement declares what a route demands from the session. The zero value
// is NOT the default: most pages require authentication, so use
// DefaultRequirement unless a route opts out.
type Requirement struct {
	RequireAuth  bool
	RequireAdmin bool
}

// DefaultRequirement matches the marketplace default: authenticated, non-admin.
var DefaultRequirement = Requirement{RequireAuth: true, RequireAdmin: false}

// PublicRequirement is for routes reachable without a session.
var PublicRequirement = Requirement{}

// AdminRequirement gates the admin panels.
var AdminRequirement = Requirement{RequireAuth: true, RequireAdmin: true}
