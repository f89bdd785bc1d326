package api

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued bearer token
type LoginResponse struct {
	Token string `json:"token"`
}

// RoleUpdateRequest is the body of PUT /admin/users/{username}/role
type RoleUpdateRequest struct {
	Role string `json:"role"`
}

// AssignmentRequest is the body of POST /admin/assignments
type AssignmentRequest struct {
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
}

// SolutionRequest is the body of POST /student/assignments/{id}/solutions
type SolutionRequest struct {
	Answers []string `json:"answers"`
}

// MarksRequest is the body of POST /admin/solutions/{id}/marks
type MarksRequest struct {
	Marks *int `json:"marks"`
}

// Response messages
const (
	MsgAdminOnlyRegistration = "Only admins can register new users"
	MsgUserRegistered        = "User registered successfully by admin"
	MsgRoleUpdated           = "Role updated successfully"
	MsgMarksUpdated          = "Marks updated successfully"
	MsgSelfDelete            = "cannot delete your own account"
	MsgSelfDemotion          = "cannot remove your own admin role"
)
