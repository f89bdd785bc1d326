package auth

import (
	"context"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
)

const (
	MinPasswordLength = 8
	MaxUsernameLength = 50
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{2,49}$`)

// RegisterRequest is the payload for creating a user
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	// Role defaults to STUDENT when empty
	Role string `json:"role,omitempty"`
}

// Validate checks the request shape. Errors wrap ErrInvalidInput or ErrInvalidRole.
func (req *RegisterRequest) Validate() error {
	if !usernamePattern.MatchString(req.Username) {
		return fmt.Errorf("%w: username must be 3-%d characters of letters, digits, '.', '_' or '-'", ErrInvalidInput, MaxUsernameLength)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil || !strings.Contains(req.Email, "@") {
		return fmt.Errorf("%w: email is not a valid address", ErrInvalidInput)
	}
	if len(req.Password) < MinPasswordLength || len(req.Password) > MaxPasswordLength {
		return fmt.Errorf("%w: password must be %d-%d bytes", ErrInvalidInput, MinPasswordLength, MaxPasswordLength)
	}
	if req.Role != "" {
		if _, err := ParseRole(req.Role); err != nil {
			return err
		}
	}
	return nil
}

// Registrar creates user accounts. Callers are responsible for checking that
// the acting principal is an ADMIN.
type Registrar struct {
	store  UserStore
	hasher PasswordHasher
	now    func() time.Time
}

// NewRegistrar creates a registrar
func NewRegistrar(store UserStore, hasher PasswordHasher) *Registrar {
	return &Registrar{
		store:  store,
		hasher: hasher,
		now:    time.Now,
	}
}

// Register validates the request, rejects duplicate usernames and emails and
// saves the new user with a hashed password. Nothing is saved on failure.
func (r *Registrar) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	role := RoleStudent
	if req.Role != "" {
		role, _ = ParseRole(req.Role)
	}

	exists, err := r.store.ExistsByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, ErrDuplicateUsername
	}

	exists, err = r.store.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	hash, err := r.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	user := &User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.store.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
