package main

import (
	"context"
	"fmt"

	"github.com/platinummonkey/classroom/pkg/auth"
	"github.com/platinummonkey/classroom/pkg/observability"
)

// roleCounter is the part of the store the admin check reads
type roleCounter interface {
	CountUsers(ctx context.Context) (map[auth.Role]int, error)
}

// warnIfNoAdmin logs a warning when no ADMIN account exists. Without one,
// registration and every /admin route are unreachable. It reports whether an
// admin was found.
func warnIfNoAdmin(ctx context.Context, store roleCounter, logger *observability.Logger) (bool, error) {
	counts, err := store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	if counts[auth.RoleAdmin] > 0 {
		return true, nil
	}

	logger.Warn("no ADMIN account exists; set CLASSROOM_ADMIN_PASSWORD to seed one")
	return false, nil
}
