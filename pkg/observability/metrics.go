package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinummonkey/classroom/pkg/contextkeys"
)

// Authentication outcomes recorded by the request authenticator
const (
	AuthOutcomeAuthenticated    = "authenticated"
	AuthOutcomeAnonymous        = "anonymous"
	AuthOutcomeMalformed        = "malformed"
	AuthOutcomeSignatureInvalid = "signature_invalid"
	AuthOutcomeExpired          = "expired"
	AuthOutcomeUnknownUser      = "unknown_user"
	AuthOutcomeStoreError       = "store_error"
)

// Login results
const (
	LoginSuccess            = "success"
	LoginInvalidCredentials = "invalid_credentials"
	LoginRateLimited        = "rate_limited"
	LoginError              = "error"
)

// Authorization decisions
const (
	DecisionPermit          = "permit"
	DecisionUnauthenticated = "unauthenticated"
	DecisionForbidden       = "forbidden"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Auth metrics
	AuthenticationsTotal       *prometheus.CounterVec
	LoginAttemptsTotal         *prometheus.CounterVec
	AuthorizationDecisions     *prometheus.CounterVec
	PrincipalCacheLookupsTotal *prometheus.CounterVec
	RateLimitRejectionsTotal   *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge

	// Business metrics
	UsersTotal       *prometheus.GaugeVec
	AssignmentsTotal prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classroom_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classroom_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthenticationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classroom_authentications_total",
				Help: "Bearer token authentication outcomes",
			},
			[]string{"outcome"},
		),
		LoginAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classroom_login_attempts_total",
				Help: "Login attempts by result",
			},
			[]string{"result"},
		),
		AuthorizationDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classroom_authorization_decisions_total",
				Help: "Authorization policy decisions",
			},
			[]string{"access", "decision"},
		),
		PrincipalCacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classroom_principal_cache_lookups_total",
				Help: "Principal cache lookups by result",
			},
			[]string{"result"},
		),
		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classroom_rate_limit_rejections_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "classroom_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "classroom_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "classroom_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		UsersTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "classroom_users_total",
				Help: "Number of registered users by role",
			},
			[]string{"role"},
		),
		AssignmentsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "classroom_assignments_total",
				Help: "Number of assignments",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthenticationsTotal,
		m.LoginAttemptsTotal,
		m.AuthorizationDecisions,
		m.PrincipalCacheLookupsTotal,
		m.RateLimitRejectionsTotal,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.UsersTotal,
		m.AssignmentsTotal,
	)

	return m
}

// RecordAuthentication counts one authenticator outcome
func (m *Metrics) RecordAuthentication(outcome string) {
	if m == nil {
		return
	}
	m.AuthenticationsTotal.WithLabelValues(outcome).Inc()
}

// RecordLogin counts one login attempt
func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordAuthorization counts one policy decision
func (m *Metrics) RecordAuthorization(access, decision string) {
	if m == nil {
		return
	}
	m.AuthorizationDecisions.WithLabelValues(access, decision).Inc()
}

// RecordCacheLookup counts a principal cache hit or miss
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.PrincipalCacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimited counts a rejected request
func (m *Metrics) RecordRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitRejectionsTotal.WithLabelValues(limiter).Inc()
}

// SetDBStats copies connection pool statistics into the gauges
func (m *Metrics) SetDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// UnmatchedRoute labels requests that no registered route matches
const UnmatchedRoute = "unmatched"

// routeLabel returns the matching route template so path parameters do not
// explode cardinality
func routeLabel(router *mux.Router, r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil && router != nil {
		var match mux.RouteMatch
		if router.Match(r, &match) && match.MatchErr == nil {
			route = match.Route
		}
	}
	if route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return UnmatchedRoute
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics. It
// wraps router from the outside so responses written before routing, such as
// policy denials, are counted too.
func HTTPMetricsMiddleware(metrics *Metrics, router *mux.Router) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := contextkeys.GetRequestStartTime(r.Context())
			if start.IsZero() {
				start = time.Now()
			}
			path := routeLabel(router, r)
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
