package rbac

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/httputil"
	"github.com/platinummonkey/classroom/pkg/middleware"
	"github.com/platinummonkey/classroom/pkg/observability"
)

// Generic response bodies; they never say which rule or role applied
const (
	MsgAuthenticationRequired = "Authentication required"
	MsgAccessDenied           = "Access denied"
)

// Enforcer applies a Policy to every request. It must run after the
// Authenticator so the principal, if any, is already attached.
type Enforcer struct {
	policy  *Policy
	metrics *observability.Metrics
	audit   *auth.AuditLogger
}

// EnforcerOption configures an Enforcer
type EnforcerOption func(*Enforcer)

// WithMetrics records every decision
func WithMetrics(m *observability.Metrics) EnforcerOption {
	return func(e *Enforcer) {
		e.metrics = m
	}
}

// WithAudit writes an audit event for every denial
func WithAudit(al *auth.AuditLogger) EnforcerOption {
	return func(e *Enforcer) {
		e.audit = al
	}
}

// NewEnforcer creates the authorization middleware
func NewEnforcer(policy *Policy, opts ...EnforcerOption) *Enforcer {
	e := &Enforcer{policy: policy}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handler permits the request or answers 401/403
func (e *Enforcer) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule := e.policy.Classify(r.Method, r.URL.Path)
		principal := middleware.PrincipalFromRequest(r)

		err := Evaluate(rule, principal)
		if err == nil {
			e.metrics.RecordAuthorization(string(rule.Access), observability.DecisionPermit)
			next.ServeHTTP(w, r)
			return
		}

		WriteDenied(w, err)

		decision := observability.DecisionForbidden
		if errors.Is(err, auth.ErrUnauthenticated) {
			decision = observability.DecisionUnauthenticated
		}
		e.metrics.RecordAuthorization(string(rule.Access), decision)

		actor := ""
		if principal != nil {
			actor = principal.Username
		}
		observability.FromContext(r.Context()).
			WithFields(map[string]interface{}{
				"rule":     rule.Pattern,
				"access":   rule.Access,
				"decision": decision,
			}).
			Info("request denied by policy")
		e.audit.LogFromRequest(r, auth.ActionAccessDenied, actor, "", auth.StatusDenied, err)
	})
}

// WriteDenied writes the generic 401 or 403 response for an Evaluate error
func WriteDenied(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrUnauthenticated) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="classroom"`)
		httputil.WriteUnauthorized(w, MsgAuthenticationRequired)
		return
	}
	httputil.WriteForbidden(w, MsgAccessDenied)
}
