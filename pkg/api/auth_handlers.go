package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/httputil"
	"github.com/platinummonkey/classroom/pkg/middleware"
	"github.com/platinummonkey/classroom/pkg/observability"
	"github.com/platinummonkey/classroom/pkg/rbac"
)

// AuthHandlers serves login and the registration entry route
type AuthHandlers struct {
	verifier  *auth.CredentialVerifier
	codec     *auth.TokenCodec
	registrar *auth.Registrar
	limiter   middleware.Limiter
	clientKey middleware.KeyFunc
	metrics   *observability.Metrics
	audit     *auth.AuditLogger
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	login := middleware.LoginRateLimit(h.limiter, h.clientKey, h.metrics, h.audit)(http.HandlerFunc(h.login))
	router.Handle("/auth/login", login).Methods("POST")
	router.HandleFunc("/auth/register", h.register).Methods("POST")
}

// login handles POST /auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	logger := observability.FromContext(r.Context()).WithField("username", req.Username)

	principal, err := h.verifier.Verify(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.metrics.RecordLogin(observability.LoginInvalidCredentials)
		h.audit.LogFromRequest(r, auth.ActionLogin, req.Username, req.Username, auth.StatusFailure, err)
		logger.Info("login rejected")
		httputil.WriteUnauthorized(w, err.Error())
		return
	}
	if err != nil {
		h.metrics.RecordLogin(observability.LoginError)
		logger.WithError(err).Error("login failed")
		httputil.WriteInternalError(w)
		return
	}

	token, err := h.codec.Issue(*principal)
	if err != nil {
		h.metrics.RecordLogin(observability.LoginError)
		logger.WithError(err).Error("failed to issue token")
		httputil.WriteInternalError(w)
		return
	}

	h.metrics.RecordLogin(observability.LoginSuccess)
	h.audit.LogFromRequest(r, auth.ActionLogin, principal.Username, principal.Username, auth.StatusSuccess, nil)
	httputil.WriteSuccess(w, LoginResponse{Token: token})
}

// register handles POST /auth/register. The route is public so anonymous
// callers reach the handler, which itself demands an ADMIN principal.
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFromRequest(r)
	if err := rbac.Evaluate(rbac.RequireRole(auth.RoleAdmin), caller); err != nil {
		if errors.Is(err, auth.ErrForbidden) {
			h.audit.LogFromRequest(r, auth.ActionRegister, caller.Username, "", auth.StatusDenied, err)
			httputil.WriteForbidden(w, MsgAdminOnlyRegistration)
			return
		}
		rbac.WriteDenied(w, err)
		return
	}

	registerUser(w, r, h.registrar, h.audit, caller)
}

// registerUser is shared by /auth/register and POST /admin/users
func registerUser(w http.ResponseWriter, r *http.Request, registrar *auth.Registrar, audit *auth.AuditLogger, caller *auth.Principal) {
	var req auth.RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := registrar.Register(r.Context(), req)
	if err != nil {
		audit.LogFromRequest(r, auth.ActionRegister, caller.Username, req.Username, auth.StatusFailure, err)
		writeStoreError(w, r, err)
		return
	}

	audit.LogFromRequest(r, auth.ActionRegister, caller.Username, user.Username, auth.StatusSuccess, nil)
	observability.FromContext(r.Context()).
		WithFields(map[string]interface{}{
			"new_user": user.Username,
			"role":     user.Role,
		}).
		Info("user registered")
	httputil.WriteMessage(w, MsgUserRegistered)
}
