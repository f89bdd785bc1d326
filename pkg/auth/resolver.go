package auth

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/classroom/pkg/observability"
)

// IdentityResolver turns a bearer token into a Principal. The role always
// comes from the user store; the token's role claim is advisory.
type IdentityResolver struct {
	codec   *TokenCodec
	store   UserStore
	cache   *PrincipalCache
	metrics *observability.Metrics
}

// ResolverOption configures an IdentityResolver
type ResolverOption func(*IdentityResolver)

// WithPrincipalCache enables caching of resolved principals
func WithPrincipalCache(cache *PrincipalCache) ResolverOption {
	return func(r *IdentityResolver) {
		r.cache = cache
	}
}

// WithResolverMetrics records cache hits and misses
func WithResolverMetrics(m *observability.Metrics) ResolverOption {
	return func(r *IdentityResolver) {
		r.metrics = m
	}
}

// NewIdentityResolver creates a resolver
func NewIdentityResolver(codec *TokenCodec, store UserStore, opts ...ResolverOption) *IdentityResolver {
	r := &IdentityResolver{
		codec: codec,
		store: store,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveFromToken validates the token and loads the current principal for
// its subject. Every failure wraps ErrUnauthenticated together with the
// underlying cause (ErrTokenExpired, ErrUserNotFound, a store error...).
func (r *IdentityResolver) ResolveFromToken(ctx context.Context, token string) (*Principal, error) {
	ctx, span := observability.Tracer("classroom/auth").Start(ctx, "auth.ResolveFromToken")
	defer span.End()

	claims, err := r.codec.Validate(token)
	if err != nil {
		span.SetStatus(codes.Error, "token rejected")
		return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
	span.SetAttributes(attribute.String("auth.subject", claims.Subject))

	if r.cache != nil {
		if p, ok := r.cache.Get(claims.Subject, claims.Signature); ok {
			r.metrics.RecordCacheLookup(true)
			span.SetAttributes(attribute.Bool("auth.cache_hit", true))
			return p, nil
		}
		r.metrics.RecordCacheLookup(false)
	}

	user, err := r.store.FindByUsername(ctx, claims.Subject)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user lookup failed")
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrUnauthenticated, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%w: user lookup failed: %w", ErrUnauthenticated, err)
	}
	if !user.Role.Valid() {
		return nil, fmt.Errorf("%w: %w %q", ErrUnauthenticated, ErrInvalidRole, user.Role)
	}

	principal := user.Principal()
	if r.cache != nil {
		r.cache.Add(claims.Subject, claims.Signature, principal)
	}
	return principal, nil
}

// Invalidate drops any cached principal for username. It must be called after
// a role change or deletion so the next request sees the store's state.
func (r *IdentityResolver) Invalidate(username string) {
	if r.cache != nil {
		r.cache.Invalidate(username)
	}
}
