package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVerifier(t *testing.T, store UserStore) *CredentialVerifier {
	t.Helper()
	v, err := NewCredentialVerifier(store, newTestHasher())
	require.NoError(t, err)
	return v
}

func TestCredentialVerifier_Verify(t *testing.T) {
	store := newMemStore()
	alice := addUser(t, store, "alice", "s3cret-pass", RoleStudent)
	verifier := newTestVerifier(t, store)
	ctx := context.Background()

	t.Run("valid credentials", func(t *testing.T) {
		p, err := verifier.Verify(ctx, "alice", "s3cret-pass")
		require.NoError(t, err)
		assert.Equal(t, &Principal{ID: alice.ID, Username: "alice", Role: RoleStudent}, p)
	})

	t.Run("wrong password", func(t *testing.T) {
		p, err := verifier.Verify(ctx, "alice", "nope")
		assert.Nil(t, p)
		assert.Equal(t, ErrInvalidCredentials, err)
	})

	t.Run("unknown user is indistinguishable", func(t *testing.T) {
		p, err := verifier.Verify(ctx, "nobody", "s3cret-pass")
		assert.Nil(t, p)
		assert.Equal(t, ErrInvalidCredentials, err)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := verifier.Verify(ctx, "", "")
		assert.Equal(t, ErrInvalidCredentials, err)
	})
}

func TestCredentialVerifier_StoreError(t *testing.T) {
	store := newMemStore()
	verifier := newTestVerifier(t, store)
	store.err = errors.New("connection reset")

	_, err := verifier.Verify(context.Background(), "alice", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, err.Error(), "connection reset")
}
