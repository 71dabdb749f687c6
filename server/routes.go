package server

import "github.com/forcerank/forcerank/internal/metrics"

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware()...)) // form_post response mode
	s.RegisterRouteHandler("GET "+RouteUserInfo, ChainMiddleware(s.UserInfoHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
