package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/classroom/pkg/httputil"
	"github.com/platinummonkey/classroom/pkg/storage"
)

// AssignmentHandlers serves assignments, submissions and grading
type AssignmentHandlers struct {
	store Store
}

// RegisterRoutes registers assignment routes
func (h *AssignmentHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/assignments", h.listAssignments).Methods("GET")
	router.HandleFunc("/assignments/{id:[0-9]+}", h.getAssignment).Methods("GET")

	router.HandleFunc("/admin/assignments", h.createAssignment).Methods("POST")
	router.HandleFunc("/admin/solutions/{id:[0-9]+}/marks", h.giveMarks).Methods("POST")

	router.HandleFunc("/student/assignments/{id:[0-9]+}/solutions", h.submitSolution).Methods("POST")
	router.HandleFunc("/student/solutions", h.listMySolutions).Methods("GET")
	router.HandleFunc("/student/solutions/{id:[0-9]+}", h.getMySolution).Methods("GET")
}

// createAssignment handles POST /admin/assignments
func (h *AssignmentHandlers) createAssignment(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	var req AssignmentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	title := strings.TrimSpace(req.Title)
	if !httputil.RequireNonEmpty(w, title, "title") {
		return
	}

	a := &storage.Assignment{
		Title:     title,
		Questions: req.Questions,
		CreatedBy: caller.ID,
	}
	if err := h.store.CreateAssignment(r.Context(), a); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, a)
}

// listAssignments handles GET /assignments
func (h *AssignmentHandlers) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.store.ListAssignments(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, assignments)
}

// getAssignment handles GET /assignments/{id}
func (h *AssignmentHandlers) getAssignment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	a, err := h.store.GetAssignment(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, a)
}

// submitSolution handles POST /student/assignments/{id}/solutions
func (h *AssignmentHandlers) submitSolution(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req SolutionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	sol := &storage.Solution{
		AssignmentID: id,
		StudentID:    caller.ID,
		Answers:      req.Answers,
	}
	if err := h.store.CreateSolution(r.Context(), sol); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, sol)
}

// listMySolutions handles GET /student/solutions
func (h *AssignmentHandlers) listMySolutions(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}

	solutions, err := h.store.ListSolutionsByStudent(r.Context(), caller.ID)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, solutions)
}

// getMySolution handles GET /student/solutions/{id}. Another student's
// solution answers 404, the same as a missing one.
func (h *AssignmentHandlers) getMySolution(w http.ResponseWriter, r *http.Request) {
	caller, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	sol, err := h.store.GetSolution(r.Context(), id)
	if err == nil && sol.StudentID != caller.ID {
		err = storage.ErrSolutionNotFound
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sol)
}

// giveMarks handles POST /admin/solutions/{id}/marks
func (h *AssignmentHandlers) giveMarks(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req MarksRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Marks == nil || *req.Marks < 0 {
		httputil.WriteBadRequest(w, "marks must be a non-negative integer")
		return
	}

	if err := h.store.SetMarks(r.Context(), id, *req.Marks); err != nil {
		writeStoreError(w, r, err)
		return
	}
	httputil.WriteMessage(w, MsgMarksUpdated)
}
