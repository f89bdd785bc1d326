package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"ADMIN", RoleAdmin, false},
		{"student", RoleStudent, false},
		{"ROLE_ADMIN", RoleAdmin, false},
		{" Student ", RoleStudent, false},
		{"TEACHER", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRole)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUser_JSONOmitsHash(t *testing.T) {
	user := &User{ID: 1, Username: "alice", PasswordHash: "$2a$secret", Role: RoleStudent}
	data, err := json.Marshal(user)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.NotContains(t, string(data), "password")
}

func TestUser_Principal(t *testing.T) {
	user := &User{ID: 3, Username: "bob", Role: RoleAdmin}
	assert.Equal(t, &Principal{ID: 3, Username: "bob", Role: RoleAdmin}, user.Principal())
}

func TestPrincipal_HasRole(t *testing.T) {
	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.HasRole(RoleAdmin))

	p := &Principal{Username: "bob", Role: RoleStudent}
	assert.True(t, p.HasRole(RoleStudent))
	assert.False(t, p.HasRole(RoleAdmin))
}

func TestAuthContext_IsAuthenticated(t *testing.T) {
	var nilCtx *AuthContext
	assert.False(t, nilCtx.IsAuthenticated())
	assert.False(t, (&AuthContext{}).IsAuthenticated())
	assert.True(t, (&AuthContext{Principal: &Principal{Username: "a"}}).IsAuthenticated())
}

func TestDuplicateErrors(t *testing.T) {
	assert.Equal(t, "Username already exists", ErrDuplicateUsername.Error())
	assert.Equal(t, "Email already exists", ErrDuplicateEmail.Error())
	assert.ErrorIs(t, ErrDuplicateUsername, ErrDuplicateIdentity)
	assert.ErrorIs(t, fmt.Errorf("save: %w", ErrDuplicateEmail), ErrDuplicateIdentity)
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrForbidden, http.StatusForbidden},
		{ErrUnauthenticated, http.StatusUnauthorized},
		{fmt.Errorf("%w: %w", ErrUnauthenticated, ErrTokenExpired), http.StatusUnauthorized},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrTokenSignatureInvalid, http.StatusUnauthorized},
		{ErrDuplicateUsername, http.StatusBadRequest},
		{ErrInvalidRole, http.StatusBadRequest},
		{fmt.Errorf("%w: bad email", ErrInvalidInput), http.StatusBadRequest},
		{ErrUserNotFound, http.StatusNotFound},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCode(tt.err))
		})
	}
}
