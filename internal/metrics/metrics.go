package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Logins = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forcerank_logins_total",
		Help: "Completed logins.",
	})

	LoginFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forcerank_login_failures_total",
		Help: "Login callback failures by kind.",
	}, []string{"kind"})

	TokenRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forcerank_token_refreshes_total",
		Help: "Provider access-token rotations written back to sessions.",
	})

	SessionRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forcerank_session_repairs_total",
		Help: "Legacy sessions backfilled with points and rank on read.",
	})
)

// Handler serves the default prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
