package repository

import (
	"context"
	"errors"

	"efrog/internal/common/db"
	"efrog/internal/problem/model"
)

var ErrProblemNotFound = errors.New("problem not found")

// ProblemRepository provides read access to problems and their test
// cases. Problem authoring lives in another service; the judge only
// reads.
type ProblemRepository interface {
	GetByID(ctx context.Context, tx db.Transaction, problemID int64) (*model.Problem, error)
	GetTestCases(ctx context.Context, tx db.Transaction, problemID int64, edition int32) ([]model.TestCase, error)
}

// MySQLProblemRepository implements ProblemRepository with MySQL.
type MySQLProblemRepository struct {
	db db.Database
}

func NewProblemRepository(database db.Database) ProblemRepository {
	return &MySQLProblemRepository{db: database}
}

const problemColumns = "id, edition, title, time_limit_s, mem_limit_mb, pack_key, pack_hash, use_custom_checker, checker_language, checker_source, updated_at"

// GetByID returns the current edition of a problem.
func (r *MySQLProblemRepository) GetByID(ctx context.Context, tx db.Transaction, problemID int64) (*model.Problem, error) {
	if problemID <= 0 {
		return nil, errors.New("problemID is required")
	}
	query := "SELECT " + problemColumns + " FROM problems WHERE id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, problemID)

	problem := &model.Problem{}
	var checkerLanguage, checkerSource *string
	if err := row.Scan(
		&problem.ID,
		&problem.Edition,
		&problem.Title,
		&problem.TimeLimitS,
		&problem.MemLimitMB,
		&problem.PackKey,
		&problem.PackHash,
		&problem.UseCustomChecker,
		&checkerLanguage,
		&checkerSource,
		&problem.UpdatedAt,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrProblemNotFound
		}
		return nil, err
	}
	if checkerLanguage != nil {
		problem.CheckerLanguage = *checkerLanguage
	}
	if checkerSource != nil {
		problem.CheckerSource = *checkerSource
	}
	return problem, nil
}

// GetTestCases returns the problem's test cases at one edition in
// problem-defined order.
func (r *MySQLProblemRepository) GetTestCases(ctx context.Context, tx db.Transaction, problemID int64, edition int32) ([]model.TestCase, error) {
	if problemID <= 0 {
		return nil, errors.New("problemID is required")
	}
	query := `
		SELECT id, problem_id, edition, position, score, opened
		FROM test_cases
		WHERE problem_id = ? AND edition = ?
		ORDER BY position ASC
	`
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, problemID, edition)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(
			&tc.ID,
			&tc.ProblemID,
			&tc.Edition,
			&tc.Position,
			&tc.Score,
			&tc.Opened,
		); err != nil {
			return nil, err
		}
		cases = append(cases, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cases, nil
}
