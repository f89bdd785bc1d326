package auth

import (
	"context"
	"errors"
	"fmt"
)

// dummyPassword is hashed once so unknown users cost the same bcrypt work as known ones
const dummyPassword = "classroom-timing-equalizer"

// CredentialVerifier checks a username and password against the user store
type CredentialVerifier struct {
	store     UserStore
	hasher    PasswordHasher
	dummyHash string
}

// NewCredentialVerifier creates a verifier
func NewCredentialVerifier(store UserStore, hasher PasswordHasher) (*CredentialVerifier, error) {
	dummyHash, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	return &CredentialVerifier{
		store:     store,
		hasher:    hasher,
		dummyHash: dummyHash,
	}, nil
}

// Verify returns the principal for valid credentials. Unknown users and wrong
// passwords both return ErrInvalidCredentials. A store failure is returned
// wrapped so callers can answer with a server error.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*Principal, error) {
	if username == "" || password == "" {
		_ = v.hasher.Compare(v.dummyHash, password)
		return nil, ErrInvalidCredentials
	}

	user, err := v.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = v.hasher.Compare(v.dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := v.hasher.Compare(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return user.Principal(), nil
}
