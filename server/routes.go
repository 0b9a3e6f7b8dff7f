package server

import (
	"net/http"

	"github.com/jrsteele09/go-pos-console/internal/metrics"
	"github.com/jrsteele09/go-pos-console/users"
	"github.com/rs/zerolog/log"
)

var (
	// Screen role requirements
	salesRoles     = users.Require(users.RoleAdmin, users.RoleCashier)
	inventoryRoles = users.Require(users.RoleAdmin, users.RoleWarehouse)
	adminRoles     = users.Require(users.RoleAdmin)
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHome+"{$}", ChainMiddleware(s.HomeHandler(), s.HTMLMiddleWare()...))

	// SESSION
	s.RegisterRouteFunc("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("POST "+RoutePINLogin, ChainMiddleware(s.PINLoginSubmissionHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("GET "+RouteUnauthorized, ChainMiddleware(s.UnauthorizedHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteFunc("GET "+RouteSessionState, ChainMiddleware(s.SessionStateHandler(), s.APIMiddleware()...))

	// SCREENS (gated by role)
	s.RegisterRouteFunc("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.HTMLMiddleWare(s.guard.Require(users.AnyRole))...))
	s.RegisterRouteFunc("GET "+RouteSales, ChainMiddleware(s.SalesListHandler(), s.HTMLMiddleWare(s.guard.Require(salesRoles))...))
	s.RegisterRouteFunc("GET "+RouteVoidSale, ChainMiddleware(s.VoidSalePageHandler(), s.HTMLMiddleWare(s.guard.Require(salesRoles))...))
	s.RegisterRouteFunc("POST "+RouteVoidSale, ChainMiddleware(s.VoidSaleSubmissionHandler(), s.HTMLMiddleWare(s.guard.Require(salesRoles))...))
	s.RegisterRouteFunc("GET "+RouteInventory, ChainMiddleware(s.InventoryHandler(), s.HTMLMiddleWare(s.guard.Require(inventoryRoles))...))
	s.RegisterRouteFunc("GET "+RouteAdminUsers, ChainMiddleware(s.AdminUsersHandler(), s.HTMLMiddleWare(s.guard.Require(adminRoles))...))

	// OPERATIONS
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	s.RegisterRouteFunc("GET "+RouteStaticCSS, ChainMiddleware(s.serveFileHandler(), s.StaticMiddleware()...))
}

func (s *Server) serveFileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := "css/" + r.PathValue("file")
		if err := StreamFile(w, r, filePath); err != nil {
			log.Debug().Err(err).Str("path", filePath).Msg("static file not served")
			http.Error(w, "404 - Page Not Found", http.StatusNotFound)
		}
	}
}
