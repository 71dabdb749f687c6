package server

const (
	RouteLogin    = "/auth/login"
	RouteCallback = "/auth/callback"
	RouteUserInfo = "/auth/userinfo"
	RouteLogout   = "/auth/logout"
	RouteMetrics  = "/metrics"
	RouteHealth   = "/healthz"
)
