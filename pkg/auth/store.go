package auth

import "context"

// UserStore is the authoritative source of user records.
// Implementations must be safe for concurrent use.
type UserStore interface {
	// FindByUsername returns ErrUserNotFound when no user matches
	FindByUsername(ctx context.Context, username string) (*User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// Save inserts the user and sets its ID. A uniqueness conflict returns
	// ErrDuplicateUsername or ErrDuplicateEmail.
	Save(ctx context.Context, user *User) error
}
