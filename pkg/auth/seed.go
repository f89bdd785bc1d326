package auth

import (
	"context"
	"fmt"
)

// SeedAdmin creates an ADMIN account when no user with that username exists.
// It reports whether a user was created.
func SeedAdmin(ctx context.Context, store UserStore, hasher PasswordHasher, username, email, password string) (bool, error) {
	exists, err := store.ExistsByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("failed to check admin account: %w", err)
	}
	if exists {
		return false, nil
	}

	_, err = NewRegistrar(store, hasher).Register(ctx, RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
		Role:     RoleAdmin.String(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to create admin account: %w", err)
	}
	return true, nil
}
