package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/contextkeys"
	"github.com/platinummonkey/classroom/pkg/observability"
)

// Resolver turns a bearer token into a principal
type Resolver interface {
	ResolveFromToken(ctx context.Context, token string) (*auth.Principal, error)
}

// Authenticator is the per-request authentication gate. It never rejects a
// request: a missing or unusable credential leaves the request anonymous and
// the authorization policy decides what an anonymous caller may reach.
type Authenticator struct {
	resolver Resolver
	metrics  *observability.Metrics
	audit    *auth.AuditLogger
}

// AuthenticatorOption configures an Authenticator
type AuthenticatorOption func(*Authenticator)

// WithAuthMetrics records one outcome per request
func WithAuthMetrics(m *observability.Metrics) AuthenticatorOption {
	return func(a *Authenticator) {
		a.metrics = m
	}
}

// WithAuthAudit writes an audit event for every rejected token
func WithAuthAudit(al *auth.AuditLogger) AuthenticatorOption {
	return func(a *Authenticator) {
		a.audit = al
	}
}

// NewAuthenticator creates the authentication middleware
func NewAuthenticator(resolver Resolver, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{resolver: resolver}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler attaches exactly one AuthContext to each request. If one is
// already present the request passes through untouched.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAuthContext(r) != nil {
			next.ServeHTTP(w, r)
			return
		}

		authCtx := &auth.AuthContext{}
		ctx := r.Context()

		token, present := BearerToken(r)
		switch {
		case token == "":
			if present {
				observability.FromContext(ctx).Debug("ignoring malformed Authorization header")
			}
			a.metrics.RecordAuthentication(observability.AuthOutcomeAnonymous)

		default:
			principal, err := a.resolver.ResolveFromToken(ctx, token)
			if err != nil {
				outcome := classify(err)
				a.metrics.RecordAuthentication(outcome)
				a.logRejection(r, outcome, err)
				break
			}
			authCtx.Principal = principal
			a.metrics.RecordAuthentication(observability.AuthOutcomeAuthenticated)
			ctx = contextkeys.WithUserID(ctx, principal.Username)
		}

		ctx = contextkeys.WithAuth(ctx, authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) logRejection(r *http.Request, outcome string, err error) {
	logger := observability.FromContext(r.Context()).
		WithField("outcome", outcome).
		WithError(err)

	// Store failures are operational problems; the rest are client mistakes
	if outcome == observability.AuthOutcomeStoreError {
		logger.Error("token could not be resolved, continuing anonymously")
	} else {
		logger.Warn("token rejected, continuing anonymously")
	}

	a.audit.LogFromRequest(r, auth.ActionTokenRejected, "", "", auth.StatusFailure, errors.New(outcome))
}

func classify(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return observability.AuthOutcomeExpired
	case errors.Is(err, auth.ErrTokenSignatureInvalid):
		return observability.AuthOutcomeSignatureInvalid
	case errors.Is(err, auth.ErrTokenMalformed):
		return observability.AuthOutcomeMalformed
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidRole):
		return observability.AuthOutcomeUnknownUser
	default:
		return observability.AuthOutcomeStoreError
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. present reports whether any Authorization header was sent.
func BearerToken(r *http.Request) (token string, present bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(value), true
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// PrincipalFromRequest returns the attached principal, nil when anonymous
func PrincipalFromRequest(r *http.Request) *auth.Principal {
	authCtx := GetAuthContext(r)
	if !authCtx.IsAuthenticated() {
		return nil
	}
	return authCtx.Principal
}
