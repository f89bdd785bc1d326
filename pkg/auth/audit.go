package auth

import (
	"net/http"

	"github.com/platinummonkey/classroom/pkg/observability"
)

// Audit actions
const (
	ActionLogin         = "auth.login"
	ActionRegister      = "user.register"
	ActionRoleChange    = "user.role_change"
	ActionUserDelete    = "user.delete"
	ActionAccessDenied  = "access.denied"
	ActionRateLimited   = "ratelimit.exceeded"
	ActionTokenRejected = "token.rejected"
)

// Status constants
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDenied  = "denied"
)

// AuditEvent is one security-relevant event
type AuditEvent struct {
	Action string
	// Actor is the authenticated username performing the action, empty when anonymous
	Actor string
	// Subject is the username the action applies to
	Subject   string
	Status    string
	IPAddress string
	UserAgent string
	Err       error
}

// AuditLogger writes security audit events as structured log entries
type AuditLogger struct {
	logger  *observability.Logger
	proxies *TrustedProxies
}

// NewAuditLogger creates an audit logger
func NewAuditLogger(logger *observability.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.WithField("audit", true)}
}

// WithTrustedProxies resolves event IP addresses through tp
func (al *AuditLogger) WithTrustedProxies(tp *TrustedProxies) *AuditLogger {
	if al != nil {
		al.proxies = tp
	}
	return al
}

// Log writes the event. Events without an action or status are dropped.
func (al *AuditLogger) Log(event AuditEvent) {
	if al == nil || event.Action == "" || event.Status == "" {
		return
	}

	fields := map[string]interface{}{
		"action": event.Action,
		"status": event.Status,
	}
	if event.Actor != "" {
		fields["actor"] = event.Actor
	}
	if event.Subject != "" {
		fields["subject"] = event.Subject
	}
	if event.IPAddress != "" {
		fields["ip"] = event.IPAddress
	}
	if event.UserAgent != "" {
		fields["user_agent"] = event.UserAgent
	}

	entry := al.logger.WithFields(fields).WithError(event.Err)
	if event.Status == StatusSuccess {
		entry.Info("audit event")
	} else {
		entry.Warn("audit event")
	}
}

// LogFromRequest records an event with client details taken from r
func (al *AuditLogger) LogFromRequest(r *http.Request, action, actor, subject, status string, err error) {
	if al == nil {
		return
	}
	al.Log(AuditEvent{
		Action:    action,
		Actor:     actor,
		Subject:   subject,
		Status:    status,
		IPAddress: al.proxies.ClientIP(r),
		UserAgent: r.UserAgent(),
		Err:       err,
	})
}
