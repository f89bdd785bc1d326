package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/classroom/pkg/auth"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()

	db, err := Open(ctx, Config{
		Driver: DriverSQLite,
		URL:    "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db, DriverSQLite))
	return NewSQLStore(db, DriverSQLite)
}

func saveUser(t *testing.T, s *SQLStore, username string, role auth.Role) *auth.User {
	t.Helper()
	u := &auth.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$04$hash",
		Role:         role,
	}
	require.NoError(t, s.Save(context.Background(), u))
	return u
}

func TestSQLStore_Users(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	alice := saveUser(t, s, "alice", auth.RoleAdmin)
	assert.NotZero(t, alice.ID)
	assert.False(t, alice.CreatedAt.IsZero())

	got, err := s.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.Equal(t, auth.RoleAdmin, got.Role)
	assert.Equal(t, "$2a$04$hash", got.PasswordHash)

	_, err = s.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)

	exists, err := s.ExistsByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ExistsByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLStore_SaveDuplicates(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	saveUser(t, s, "alice", auth.RoleStudent)

	err := s.Save(ctx, &auth.User{Username: "alice", Email: "other@example.com", PasswordHash: "x", Role: auth.RoleStudent})
	assert.ErrorIs(t, err, auth.ErrDuplicateUsername)

	err = s.Save(ctx, &auth.User{Username: "alice2", Email: "alice@example.com", PasswordHash: "x", Role: auth.RoleStudent})
	assert.ErrorIs(t, err, auth.ErrDuplicateEmail)

	err = s.Save(ctx, &auth.User{Username: "carol", Email: "carol@example.com", PasswordHash: "x", Role: "TEACHER"})
	assert.ErrorIs(t, err, auth.ErrInvalidRole)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestSQLStore_UpdateRoleAndDelete(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	saveUser(t, s, "sam", auth.RoleStudent)
	saveUser(t, s, "root", auth.RoleAdmin)

	require.NoError(t, s.UpdateRole(ctx, "sam", auth.RoleAdmin))
	got, err := s.FindByUsername(ctx, "sam")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, got.Role)

	assert.ErrorIs(t, s.UpdateRole(ctx, "ghost", auth.RoleAdmin), auth.ErrUserNotFound)
	assert.ErrorIs(t, s.UpdateRole(ctx, "sam", "OWNER"), auth.ErrInvalidRole)

	counts, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[auth.RoleAdmin])
	assert.Equal(t, 0, counts[auth.RoleStudent])

	require.NoError(t, s.DeleteUser(ctx, "sam"))
	assert.ErrorIs(t, s.DeleteUser(ctx, "sam"), auth.ErrUserNotFound)

	_, err = s.FindByUsername(ctx, "sam")
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestSQLStore_AssignmentsAndSolutions(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()
	admin := saveUser(t, s, "root", auth.RoleAdmin)
	student := saveUser(t, s, "sam", auth.RoleStudent)

	a := &Assignment{Title: "Week 1", Questions: []string{"2+2?", "Capital of France?"}, CreatedBy: admin.ID}
	require.NoError(t, s.CreateAssignment(ctx, a))
	assert.NotZero(t, a.ID)

	empty := &Assignment{Title: "Empty"}
	require.NoError(t, s.CreateAssignment(ctx, empty))

	list, err := s.ListAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"2+2?", "Capital of France?"}, list[0].Questions)
	assert.Equal(t, admin.ID, list[0].CreatedBy)
	assert.Equal(t, []string{}, list[1].Questions)

	n, err := s.CountAssignments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.GetAssignment(ctx, 999)
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	err = s.CreateSolution(ctx, &Solution{AssignmentID: 999, StudentID: student.ID})
	assert.ErrorIs(t, err, ErrAssignmentNotFound)

	sol := &Solution{AssignmentID: a.ID, StudentID: student.ID, Answers: []string{"4", "Paris"}}
	require.NoError(t, s.CreateSolution(ctx, sol))
	assert.Nil(t, sol.Marks)

	require.NoError(t, s.SetMarks(ctx, sol.ID, 9))
	assert.ErrorIs(t, s.SetMarks(ctx, 999, 1), ErrSolutionNotFound)

	graded, err := s.GetSolution(ctx, sol.ID)
	require.NoError(t, err)
	require.NotNil(t, graded.Marks)
	assert.Equal(t, 9, *graded.Marks)
	assert.NotNil(t, graded.GradedAt)
	assert.Equal(t, []string{"4", "Paris"}, graded.Answers)

	_, err = s.GetSolution(ctx, 999)
	assert.ErrorIs(t, err, ErrSolutionNotFound)

	mine, err := s.ListSolutionsByStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	none, err := s.ListSolutionsByStudent(ctx, admin.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	// deleting the student cascades to their solutions
	require.NoError(t, s.DeleteUser(ctx, "sam"))
	_, err = s.GetSolution(ctx, sol.ID)
	assert.ErrorIs(t, err, ErrSolutionNotFound)
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, s.db, DriverSQLite))

	var n int
	require.NoError(t, s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, len(Migrations()), n)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql", URL: "x"})
	assert.Error(t, err)

	_, err = Open(context.Background(), Config{Driver: DriverSQLite})
	assert.Error(t, err)

	assert.Error(t, Migrate(context.Background(), nil, "oracle"))
}

func TestRebind(t *testing.T) {
	q := "SELECT a FROM t WHERE b = ? AND c = ?"
	assert.Equal(t, q, rebind(DriverSQLite, q))
	assert.Equal(t, "SELECT a FROM t WHERE b = $1 AND c = $2", rebind(DriverPostgres, q))
}
