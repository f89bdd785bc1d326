package auth

import (
	"strings"
	"time"
)

// Role represents the classroom role of a user
type Role string

const (
	RoleAdmin   Role = "ADMIN"   // Creates assignments, grades solutions, manages users
	RoleStudent Role = "STUDENT" // Submits solutions
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

func (r Role) String() string {
	return string(r)
}

// ParseRole parses a role name case-insensitively. An optional "ROLE_" prefix is accepted.
func ParseRole(s string) (Role, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	name = strings.TrimPrefix(name, "ROLE_")
	role := Role(name)
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// User is the authoritative user record held by the user store
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // Never expose hash
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal returns the request identity derived from this record
func (u *User) Principal() *Principal {
	return &Principal{
		ID:       u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
}

// Principal is the verified identity and role for the current request.
// It is built fresh for every request and must not be mutated once attached.
type Principal struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// HasRole checks if the principal holds exactly the given role
func (p *Principal) HasRole(role Role) bool {
	return p != nil && p.Role == role
}

// AuthContext holds the authentication state of a single request.
// Principal is nil for anonymous requests.
type AuthContext struct {
	Principal *Principal
}

// IsAuthenticated reports whether a principal is attached
func (ac *AuthContext) IsAuthenticated() bool {
	return ac != nil && ac.Principal != nil
}
