package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/observability"
)

func TestWarnIfNoAdmin(t *testing.T) {
	t.Run("admin present", func(t *testing.T) {
		logs := &bytes.Buffer{}
		found, err := warnIfNoAdmin(context.Background(),
			&fakeStats{users: map[auth.Role]int{auth.RoleAdmin: 1, auth.RoleStudent: 3}},
			observability.NewLogger(observability.DebugLevel, logs))
		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, logs.String())
	})

	t.Run("no admin", func(t *testing.T) {
		logs := &bytes.Buffer{}
		found, err := warnIfNoAdmin(context.Background(),
			&fakeStats{users: map[auth.Role]int{auth.RoleAdmin: 0, auth.RoleStudent: 3}},
			observability.NewLogger(observability.DebugLevel, logs))
		require.NoError(t, err)
		assert.False(t, found)
		assert.Contains(t, logs.String(), "no ADMIN account exists")
		assert.Contains(t, logs.String(), `"level":"warning"`)
	})

	t.Run("store error", func(t *testing.T) {
		_, err := warnIfNoAdmin(context.Background(),
			&fakeStats{err: errors.New("db down")},
			observability.NewLogger(observability.DebugLevel, &bytes.Buffer{}))
		assert.Error(t, err)
	})
}
