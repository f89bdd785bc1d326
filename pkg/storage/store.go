package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/classroom/pkg/auth"
)

// SQLStore is the relational store for users, assignments and solutions.
// It is safe for concurrent use.
type SQLStore struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

var _ auth.UserStore = (*SQLStore)(nil)

// NewSQLStore wraps an open database. driver selects the placeholder dialect.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{
		db:     db,
		driver: driver,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (s *SQLStore) q(query string) string {
	return rebind(s.driver, query)
}

const userColumns = "id, username, email, password_hash, role, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var u auth.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

// FindByUsername returns auth.ErrUserNotFound when no user matches
func (s *SQLStore) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := s.db.QueryRowContext(ctx,
		s.q("SELECT "+userColumns+" FROM users WHERE username = ?"), username)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ExistsByUsername reports whether a user with this username exists
func (s *SQLStore) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM users WHERE username = ?", username)
}

// ExistsByEmail reports whether a user with this email exists
func (s *SQLStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.exists(ctx, "SELECT 1 FROM users WHERE email = ?", email)
}

func (s *SQLStore) exists(ctx context.Context, query string, arg interface{}) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q(query), arg).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return true, nil
}

// Save inserts a new user and fills in ID and timestamps
func (s *SQLStore) Save(ctx context.Context, user *auth.User) error {
	if !user.Role.Valid() {
		return auth.ErrInvalidRole
	}

	now := s.now()
	err := s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO users (username, email, password_hash, role, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			RETURNING id`),
		user.Username, user.Email, user.PasswordHash, string(user.Role), now, now,
	).Scan(&user.ID)
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return dup
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// duplicateError maps a unique-constraint violation onto the auth duplicate errors
func duplicateError(err error) error {
	var detail string

	var pqErr *pq.Error
	var liteErr sqlite3.Error
	switch {
	case errors.As(err, &pqErr) && pqErr.Code == "23505":
		detail = pqErr.Constraint + " " + pqErr.Detail
	case errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique:
		detail = liteErr.Error()
	default:
		return nil
	}

	if strings.Contains(detail, "email") {
		return auth.ErrDuplicateEmail
	}
	return auth.ErrDuplicateUsername
}

// UpdateRole changes a user's role. Callers must invalidate any cached principal.
func (s *SQLStore) UpdateRole(ctx context.Context, username string, role auth.Role) error {
	if !role.Valid() {
		return auth.ErrInvalidRole
	}

	result, err := s.db.ExecContext(ctx,
		s.q("UPDATE users SET role = ?, updated_at = ? WHERE username = ?"),
		string(role), s.now(), username)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return requireAffected(result, auth.ErrUserNotFound)
}

// DeleteUser removes a user along with their solutions
func (s *SQLStore) DeleteUser(ctx context.Context, username string) error {
	result, err := s.db.ExecContext(ctx, s.q("DELETE FROM users WHERE username = ?"), username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireAffected(result, auth.ErrUserNotFound)
}

func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// ListUsers returns every user ordered by ID
func (s *SQLStore) ListUsers(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []*auth.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of users per role
func (s *SQLStore) CountUsers(ctx context.Context) (map[auth.Role]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT role, COUNT(*) FROM users GROUP BY role")
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	defer rows.Close()

	counts := map[auth.Role]int{
		auth.RoleAdmin:   0,
		auth.RoleStudent: 0,
	}
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("failed to scan user count: %w", err)
		}
		counts[auth.Role(role)] = n
	}
	return counts, rows.Err()
}
