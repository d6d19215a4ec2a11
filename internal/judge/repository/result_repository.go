package repository

import (
	"context"
	"errors"

	"efrog/internal/common/db"
	"efrog/internal/judge/model"
	"efrog/internal/judge/verdict"
)

var ErrSubmissionStateNotFound = errors.New("submission state not found")

// ResultRepository persists per-case results and the terminal
// submission state.
type ResultRepository interface {
	AppendCaseResult(ctx context.Context, tx db.Transaction, submissionID string, result model.TestCaseResult) error
	ListCaseResults(ctx context.Context, tx db.Transaction, submissionID string) ([]model.TestCaseResult, error)
	Finalize(ctx context.Context, tx db.Transaction, submissionID string, state model.SubmissionState) error
	GetState(ctx context.Context, tx db.Transaction, submissionID string) (*model.SubmissionState, error)
}

// MySQLResultRepository implements ResultRepository with MySQL.
type MySQLResultRepository struct {
	db db.Database
}

func NewResultRepository(database db.Database) ResultRepository {
	return &MySQLResultRepository{db: database}
}

// AppendCaseResult inserts one per-case row. Rows are append-only.
func (r *MySQLResultRepository) AppendCaseResult(ctx context.Context, tx db.Transaction, submissionID string, result model.TestCaseResult) error {
	if submissionID == "" {
		return errors.New("submissionID is required")
	}
	query := `
		INSERT INTO submission_results
		(submission_id, test_case_id, verdict, time_ms, cpu_time_ms, memory_kb)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		submissionID,
		result.TestCaseID,
		int(result.Verdict),
		result.TimeMs,
		result.CPUTimeMs,
		result.MemoryKB,
	)
	return err
}

// ListCaseResults returns the persisted rows in insertion order.
func (r *MySQLResultRepository) ListCaseResults(ctx context.Context, tx db.Transaction, submissionID string) ([]model.TestCaseResult, error) {
	if submissionID == "" {
		return nil, errors.New("submissionID is required")
	}
	query := `
		SELECT test_case_id, verdict, time_ms, cpu_time_ms, memory_kb
		FROM submission_results
		WHERE submission_id = ?
		ORDER BY id ASC
	`
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, submissionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []model.TestCaseResult
	for rows.Next() {
		var result model.TestCaseResult
		var code int
		if err := rows.Scan(
			&result.TestCaseID,
			&code,
			&result.TimeMs,
			&result.CPUTimeMs,
			&result.MemoryKB,
		); err != nil {
			return nil, err
		}
		result.Verdict = verdict.Verdict(code)
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Finalize writes the terminal state and marks the submission checked.
// Called exactly once per submission by its owning orchestrator run.
func (r *MySQLResultRepository) Finalize(ctx context.Context, tx db.Transaction, submissionID string, state model.SubmissionState) error {
	if submissionID == "" {
		return errors.New("submissionID is required")
	}
	query := `
		UPDATE submissions
		SET compiled = ?, compilation_details = ?, correct_score = ?, total_score = ?, verdict = ?, checked = 1
		WHERE submission_id = ?
	`
	_, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		state.Compiled,
		state.CompilationDetails,
		state.CorrectScore,
		state.TotalScore,
		int(state.Verdict),
		submissionID,
	)
	return err
}

// GetState returns the aggregate state for a submission.
func (r *MySQLResultRepository) GetState(ctx context.Context, tx db.Transaction, submissionID string) (*model.SubmissionState, error) {
	if submissionID == "" {
		return nil, errors.New("submissionID is required")
	}
	query := `
		SELECT compiled, compilation_details, correct_score, total_score, verdict, checked
		FROM submissions
		WHERE submission_id = ?
		LIMIT 1
	`
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, submissionID)

	state := &model.SubmissionState{}
	var code int
	var details *string
	if err := row.Scan(
		&state.Compiled,
		&details,
		&state.CorrectScore,
		&state.TotalScore,
		&code,
		&state.Checked,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionStateNotFound
		}
		return nil, err
	}
	state.Verdict = verdict.Verdict(code)
	if details != nil {
		state.CompilationDetails = *details
	}
	return state, nil
}
