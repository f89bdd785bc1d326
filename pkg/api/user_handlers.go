package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/httputil"
)

// principalInvalidator drops cached principals after a role change or delete
type principalInvalidator interface {
	Invalidate(username string)
}

// UserHandlers serves the profile and user administration routes
type UserHandlers struct {
	store     Store
	registrar *auth.Registrar
	resolver  principalInvalidator
	audit     *auth.AuditLogger
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/user/profile", h.profile).Methods("GET")

	router.HandleFunc("/admin/users", h.createUser).Methods("POST")
	router.HandleFunc("/admin/users", h.listUsers).Methods("GET")
	router.HandleFunc("/admin/users/{username}/role", h.updateRole).Methods("PUT")
	router.HandleFunc("/admin/users/{username}", h.deleteUser).Methods("DELETE")
}

// profile handles GET /user/profile
func (h *UserHandlers) profile(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	user, err := h.store.FindByUsername(r.Context(), caller.Username)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// createUser handles POST /admin/users
func (h *UserHandlers) createUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	registerUser(w, r, h.registrar, h.audit, caller)
}

// listUsers handles GET /admin/users
func (h *UserHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// updateRole handles PUT /admin/users/{username}/role
func (h *UserHandlers) updateRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	username, ok := httputil.ParsePathStringOrError(w, r, "username")
	if !ok {
		return
	}

	var req RoleUpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil {
		httputil.WriteBadRequest(w, "role must be ADMIN or STUDENT")
		return
	}
	// the caller is an admin, so refusing self-demotion always leaves one
	if username == caller.Username && role != auth.RoleAdmin {
		httputil.WriteBadRequest(w, MsgSelfDemotion)
		return
	}

	if err := h.store.UpdateRole(r.Context(), username, role); err != nil {
		writeStoreError(w, r, err)
		return
	}
	h.resolver.Invalidate(username)

	h.audit.LogFromRequest(r, auth.ActionRoleChange, caller.Username, username, auth.StatusSuccess, nil)
	httputil.WriteMessage(w, MsgRoleUpdated)
}

// deleteUser handles DELETE /admin/users/{username}
func (h *UserHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	username, ok := httputil.ParsePathStringOrError(w, r, "username")
	if !ok {
		return
	}
	if username == caller.Username {
		httputil.WriteBadRequest(w, MsgSelfDelete)
		return
	}

	if err := h.store.DeleteUser(r.Context(), username); err != nil {
		writeStoreError(w, r, err)
		return
	}
	h.resolver.Invalidate(username)

	h.audit.LogFromRequest(r, auth.ActionUserDelete, caller.Username, username, auth.StatusSuccess, nil)
	httputil.WriteNoContent(w)
}
