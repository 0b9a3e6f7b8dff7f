package server

// Route path constants
// All console routes are defined here to ensure consistency and prevent typos
const (
	RouteHome = "/"

	// Session
	RouteLogin        = "/login"
	RoutePINLogin     = "/login/pin"
	RouteLogout       = "/logout"
	RouteUnauthorized = "/unauthorized"
	RouteSessionState = "/api/session"

	// Screens
	RouteDashboard  = "/dashboard"
	RouteSales      = "/sales"
	RouteVoidSale   = "/sales/{id}/void"
	RouteInventory  = "/inventory"
	RouteAdminUsers = "/admin/users"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/healthz"

	// Static Asset Routes (patterns)
	RouteStaticCSS = "/css/{file}"
)
