// Package storage persists classroom users, assignments and solutions.
//
// A single SQLStore serves both supported drivers: PostgreSQL (lib/pq) for
// deployments and SQLite (go-sqlite3) for development and tests. Queries are
// written once with "?" placeholders and rebound for PostgreSQL.
//
//	db, err := storage.Open(ctx, storage.Config{Driver: "postgres", URL: url})
//	if err != nil {
//		return err
//	}
//	if err := storage.Migrate(ctx, db, "postgres"); err != nil {
//		return err
//	}
//	store := storage.NewSQLStore(db, "postgres")
//
// SQLStore implements auth.UserStore. Uniqueness conflicts on username or
// email surface as auth.ErrDuplicateUsername and auth.ErrDuplicateEmail so the
// HTTP layer can answer with a client error.
//
// NewRedisClient builds the optional Redis client used by the distributed
// login rate limiter and the readiness check.
package storage
