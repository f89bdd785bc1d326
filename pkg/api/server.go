package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/httputil"
	"github.com/platinummonkey/classroom/pkg/middleware"
	"github.com/platinummonkey/classroom/pkg/observability"
	"github.com/platinummonkey/classroom/pkg/rbac"
	"github.com/platinummonkey/classroom/pkg/storage"
)

// Store is the persistence the handlers need. *storage.SQLStore implements it.
type Store interface {
	auth.UserStore

	UpdateRole(ctx context.Context, username string, role auth.Role) error
	DeleteUser(ctx context.Context, username string) error
	ListUsers(ctx context.Context) ([]*auth.User, error)

	CreateAssignment(ctx context.Context, a *storage.Assignment) error
	ListAssignments(ctx context.Context) ([]*storage.Assignment, error)
	GetAssignment(ctx context.Context, id int64) (*storage.Assignment, error)
	CreateSolution(ctx context.Context, sol *storage.Solution) error
	ListSolutionsByStudent(ctx context.Context, studentID int64) ([]*storage.Solution, error)
	GetSolution(ctx context.Context, id int64) (*storage.Solution, error)
	SetMarks(ctx context.Context, id int64, marks int) error
}

// Options wires the server's collaborators. Store, Codec, Resolver, Verifier
// and Hasher are required; the rest fall back to defaults.
type Options struct {
	Store    Store
	Codec    *auth.TokenCodec
	Resolver *auth.IdentityResolver
	Verifier *auth.CredentialVerifier
	Hasher   auth.PasswordHasher

	// Policy defaults to rbac.DefaultPolicy
	Policy *rbac.Policy
	// LoginLimiter defaults to an in-memory limiter of 10 attempts per minute
	LoginLimiter middleware.Limiter
	// TrustedProxies may set X-Forwarded-For for rate limiting and audit;
	// nil trusts nobody
	TrustedProxies *auth.TrustedProxies

	Logger  *observability.Logger
	Metrics *observability.Metrics
	Health  *observability.HealthChecker

	MaxBodyBytes int64
	// Tracing wraps the handler in otelhttp
	Tracing bool
}

// Server is the classroom HTTP API
type Server struct {
	router  *mux.Router
	handler http.Handler

	authHandlers       *AuthHandlers
	userHandlers       *UserHandlers
	assignmentHandlers *AssignmentHandlers
	health             *observability.HealthChecker
}

// NewServer builds the router and the middleware chain:
// request ID, tracing, logging, metrics, recovery, authentication, authorization.
func NewServer(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Codec == nil || opts.Resolver == nil || opts.Verifier == nil || opts.Hasher == nil {
		return nil, errors.New("api: store, codec, resolver, verifier and hasher are required")
	}
	if opts.Policy == nil {
		opts.Policy = rbac.DefaultPolicy()
	}
	if opts.LoginLimiter == nil {
		opts.LoginLimiter = middleware.NewRateLimiter(middleware.LoginRateLimitConfig())
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if opts.Health == nil {
		opts.Health = observability.NewHealthChecker(nil, nil, "")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	audit := auth.NewAuditLogger(opts.Logger).WithTrustedProxies(opts.TrustedProxies)
	registrar := auth.NewRegistrar(opts.Store, opts.Hasher)

	s := &Server{
		router: mux.NewRouter(),
		authHandlers: &AuthHandlers{
			verifier:  opts.Verifier,
			codec:     opts.Codec,
			registrar: registrar,
			limiter:   opts.LoginLimiter,
			clientKey: middleware.TrustedClientIPKey(opts.TrustedProxies),
			metrics:   opts.Metrics,
			audit:     audit,
		},
		userHandlers: &UserHandlers{
			store:     opts.Store,
			registrar: registrar,
			resolver:  opts.Resolver,
			audit:     audit,
		},
		assignmentHandlers: &AssignmentHandlers{
			store: opts.Store,
		},
		health: opts.Health,
	}
	s.setupRoutes()

	authenticator := middleware.NewAuthenticator(opts.Resolver,
		middleware.WithAuthMetrics(opts.Metrics),
		middleware.WithAuthAudit(audit))
	enforcer := rbac.NewEnforcer(opts.Policy,
		rbac.WithMetrics(opts.Metrics),
		rbac.WithAudit(audit))

	chain := []func(http.Handler) http.Handler{httputil.RequestIDMiddleware}
	if opts.Tracing {
		chain = append(chain, func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "classroom.api")
		})
	}
	chain = append(chain,
		httputil.LoggingMiddleware(opts.Logger),
		observability.HTTPMetricsMiddleware(opts.Metrics, s.router),
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(opts.MaxBodyBytes),
		authenticator.Handler,
		enforcer.Handler,
	)

	s.handler = httputil.Chain(chain...)(s.router)
	return s, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.health.Liveness).Methods("GET")
	s.router.HandleFunc("/readyz", s.health.Readiness).Methods("GET")

	s.authHandlers.RegisterRoutes(s.router)
	s.userHandlers.RegisterRoutes(s.router)
	s.assignmentHandlers.RegisterRoutes(s.router)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "not found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the route table, without middleware
func (s *Server) Router() *mux.Router {
	return s.router
}

// principal returns the authenticated caller. The enforcer guarantees one on
// non-public routes; the nil check covers handlers mounted without it.
func principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := middleware.PrincipalFromRequest(r)
	if p == nil {
		rbac.WriteDenied(w, auth.ErrUnauthenticated)
		return nil, false
	}
	return p, true
}

// writeStoreError maps domain errors to responses; anything unexpected is
// logged and answered with a generic 500
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrAssignmentNotFound) || errors.Is(err, storage.ErrSolutionNotFound) {
		httputil.WriteNotFound(w, err.Error())
		return
	}

	status := auth.StatusCode(err)
	if status == http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).Error("request failed")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteErrorMessage(w, status, err.Error())
}
