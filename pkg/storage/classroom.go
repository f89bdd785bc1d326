package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrSolutionNotFound   = errors.New("solution not found")
)

// Assignment is a set of questions posted by an admin
type Assignment struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Questions []string  `json:"questions"`
	CreatedBy int64     `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Solution is a student's answers to an assignment. Marks is nil until graded.
type Solution struct {
	ID           int64      `json:"id"`
	AssignmentID int64      `json:"assignment_id"`
	StudentID    int64      `json:"student_id"`
	Answers      []string   `json:"answers"`
	Marks        *int       `json:"marks"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
}

// CreateAssignment inserts an assignment and fills in ID and CreatedAt
func (s *SQLStore) CreateAssignment(ctx context.Context, a *Assignment) error {
	questions, err := json.Marshal(nonNil(a.Questions))
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}

	var createdBy sql.NullInt64
	if a.CreatedBy > 0 {
		createdBy = sql.NullInt64{Int64: a.CreatedBy, Valid: true}
	}

	now := s.now()
	err = s.db.QueryRowContext(ctx,
		s.q("INSERT INTO assignments (title, questions, created_by, created_at) VALUES (?, ?, ?, ?) RETURNING id"),
		a.Title, string(questions), createdBy, now,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	a.CreatedAt = now
	return nil
}

const assignmentColumns = "id, title, questions, created_by, created_at"

func scanAssignment(row rowScanner) (*Assignment, error) {
	var a Assignment
	var questions string
	var createdBy sql.NullInt64
	if err := row.Scan(&a.ID, &a.Title, &questions, &createdBy, &a.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(questions), &a.Questions); err != nil {
		return nil, fmt.Errorf("failed to decode questions of assignment %d: %w", a.ID, err)
	}
	a.CreatedBy = createdBy.Int64
	return &a, nil
}

// GetAssignment returns ErrAssignmentNotFound when no assignment matches
func (s *SQLStore) GetAssignment(ctx context.Context, id int64) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+assignmentColumns+" FROM assignments WHERE id = ?"), id)
	a, err := scanAssignment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return a, nil
}

// ListAssignments returns every assignment ordered by ID
func (s *SQLStore) ListAssignments(ctx context.Context) ([]*Assignment, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+assignmentColumns+" FROM assignments ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	assignments := []*Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// CountAssignments returns the number of assignments
func (s *SQLStore) CountAssignments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assignments").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count assignments: %w", err)
	}
	return n, nil
}

// CreateSolution records a submission. The assignment must exist.
func (s *SQLStore) CreateSolution(ctx context.Context, sol *Solution) error {
	if _, err := s.GetAssignment(ctx, sol.AssignmentID); err != nil {
		return err
	}

	answers, err := json.Marshal(nonNil(sol.Answers))
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	now := s.now()
	err = s.db.QueryRowContext(ctx,
		s.q("INSERT INTO solutions (assignment_id, student_id, answers, submitted_at) VALUES (?, ?, ?, ?) RETURNING id"),
		sol.AssignmentID, sol.StudentID, string(answers), now,
	).Scan(&sol.ID)
	if err != nil {
		return fmt.Errorf("failed to create solution: %w", err)
	}
	sol.SubmittedAt = now
	sol.Marks = nil
	sol.GradedAt = nil
	return nil
}

const solutionColumns = "id, assignment_id, student_id, answers, marks, submitted_at, graded_at"

func scanSolution(row rowScanner) (*Solution, error) {
	var sol Solution
	var answers string
	var marks sql.NullInt64
	var gradedAt sql.NullTime
	if err := row.Scan(&sol.ID, &sol.AssignmentID, &sol.StudentID, &answers, &marks, &sol.SubmittedAt, &gradedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &sol.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers of solution %d: %w", sol.ID, err)
	}
	if marks.Valid {
		m := int(marks.Int64)
		sol.Marks = &m
	}
	if gradedAt.Valid {
		t := gradedAt.Time
		sol.GradedAt = &t
	}
	return &sol, nil
}

// GetSolution returns ErrSolutionNotFound when no solution matches
func (s *SQLStore) GetSolution(ctx context.Context, id int64) (*Solution, error) {
	row := s.db.QueryRowContext(ctx, s.q("SELECT "+solutionColumns+" FROM solutions WHERE id = ?"), id)
	sol, err := scanSolution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSolutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get solution: %w", err)
	}
	return sol, nil
}

// ListSolutionsByStudent returns a student's submissions ordered by ID
func (s *SQLStore) ListSolutionsByStudent(ctx context.Context, studentID int64) ([]*Solution, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q("SELECT "+solutionColumns+" FROM solutions WHERE student_id = ? ORDER BY id"), studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list solutions: %w", err)
	}
	defer rows.Close()

	solutions := []*Solution{}
	for rows.Next() {
		sol, err := scanSolution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan solution: %w", err)
		}
		solutions = append(solutions, sol)
	}
	return solutions, rows.Err()
}

// SetMarks grades a solution; grading again overwrites the previous marks
func (s *SQLStore) SetMarks(ctx context.Context, id int64, marks int) error {
	result, err := s.db.ExecContext(ctx,
		s.q("UPDATE solutions SET marks = ?, graded_at = ? WHERE id = ?"),
		marks, s.now(), id)
	if err != nil {
		return fmt.Errorf("failed to set marks: %w", err)
	}
	return requireAffected(result, ErrSolutionNotFound)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
