// Package middleware provides the request authentication gate and rate limiting.
//
// # Authenticator
//
// Authenticator reads "Authorization: Bearer <token>", resolves the token to
// a principal and attaches an *auth.AuthContext to the request context. It
// fails open: a missing, malformed, expired or unresolvable token leaves the
// request anonymous and the reason is logged and counted. Rejecting anonymous
// callers is the job of pkg/rbac.
//
//	authn := middleware.NewAuthenticator(resolver, middleware.WithAuthMetrics(metrics))
//	router.Use(authn.Handler)
//
//	principal := middleware.PrincipalFromRequest(r) // nil when anonymous
//
// # Rate Limiting
//
// RateLimiter is an in-process token bucket; DistributedRateLimiter shares a
// fixed window through Redis. Both satisfy Limiter. LoginRateLimit applies
// one of them to the login route keyed by client IP. Redis errors fail open.
package middleware
