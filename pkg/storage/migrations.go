package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/classroom/pkg/observability"
)

// Migration is one schema change with a statement per dialect
type Migration struct {
	Version     int
	Description string
	Postgres    string
	SQLite      string
}

func (m Migration) statement(driver string) string {
	if driver == DriverPostgres {
		return m.Postgres
	}
	return m.SQLite
}

// Migrations returns the classroom schema in application order
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS users (
					id BIGSERIAL PRIMARY KEY,
					username VARCHAR(50) NOT NULL UNIQUE,
					email VARCHAR(255) NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					role VARCHAR(16) NOT NULL,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS users (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					username VARCHAR(50) NOT NULL UNIQUE,
					email VARCHAR(255) NOT NULL UNIQUE,
					password_hash TEXT NOT NULL,
					role VARCHAR(16) NOT NULL,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
		},
		{
			Version:     2,
			Description: "Create assignments table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS assignments (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(255) NOT NULL,
					questions TEXT NOT NULL,
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL
				)`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS assignments (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					title VARCHAR(255) NOT NULL,
					questions TEXT NOT NULL,
					created_by INTEGER REFERENCES users(id) ON DELETE SET NULL,
					created_at TIMESTAMP NOT NULL
				)`,
		},
		{
			Version:     3,
			Description: "Create solutions table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS solutions (
					id BIGSERIAL PRIMARY KEY,
					assignment_id BIGINT NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
					student_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					answers TEXT NOT NULL,
					marks INTEGER,
					submitted_at TIMESTAMP NOT NULL,
					graded_at TIMESTAMP
				)`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS solutions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					assignment_id INTEGER NOT NULL REFERENCES assignments(id) ON DELETE CASCADE,
					student_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					answers TEXT NOT NULL,
					marks INTEGER,
					submitted_at TIMESTAMP NOT NULL,
					graded_at TIMESTAMP
				)`,
		},
		{
			Version:     4,
			Description: "Index solutions by student",
			Postgres:    `CREATE INDEX IF NOT EXISTS idx_solutions_student_id ON solutions(student_id)`,
			SQLite:      `CREATE INDEX IF NOT EXISTS idx_solutions_student_id ON solutions(student_id)`,
		},
	}
}

// Migrate applies every pending migration, each in its own transaction
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	if err := checkDriver(driver); err != nil {
		return err
	}
	logger := observability.GetLogger(ctx)

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range Migrations() {
		if applied[m.Version] {
			continue
		}

		if err := applyMigration(ctx, db, driver, m); err != nil {
			return err
		}
		logger.WithFields(map[string]interface{}{
			"version":     m.Version,
			"description": m.Description,
		}).Info("migration applied")
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, db *sql.DB, driver string, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.statement(driver)); err != nil {
		return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
	}

	if _, err := tx.ExecContext(ctx,
		rebind(driver, "INSERT INTO schema_migrations (version, description) VALUES (?, ?)"),
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
	}
	return nil
}
