package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"efrog/internal/common/cache"
	"efrog/internal/common/db"
)

const (
	defaultSubmissionCacheTTL      = 30 * time.Minute
	defaultSubmissionCacheEmptyTTL = 5 * time.Minute
	submissionCacheKeyPrefix       = "submission:"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// Submission is the intake record. Judging outcome columns on the same
// row are written later by the result repository.
type Submission struct {
	SubmissionID  string
	ProblemID     int64
	Edition       int32
	UserID        int64
	CompetitionID string
	Language      string
	SourceCode    string
	SourceKey     string
	SourceHash    string
	Scored        bool
	CreatedAt     time.Time
}

// SubmissionRepository defines submission persistence interfaces.
type SubmissionRepository interface {
	Create(ctx context.Context, tx db.Transaction, submission *Submission) error
	GetByID(ctx context.Context, tx db.Transaction, submissionID string) (*Submission, error)
}

// MySQLSubmissionRepository implements SubmissionRepository with MySQL.
type MySQLSubmissionRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewSubmissionRepository creates a submission repository with defaults.
func NewSubmissionRepository(database db.Database, cacheClient cache.Cache) SubmissionRepository {
	return NewSubmissionRepositoryWithTTL(database, cacheClient, defaultSubmissionCacheTTL, defaultSubmissionCacheEmptyTTL)
}

// NewSubmissionRepositoryWithTTL creates a submission repository with custom TTL.
func NewSubmissionRepositoryWithTTL(database db.Database, cacheClient cache.Cache, ttl, emptyTTL time.Duration) SubmissionRepository {
	if ttl <= 0 {
		ttl = defaultSubmissionCacheTTL
	}
	if emptyTTL <= 0 {
		emptyTTL = defaultSubmissionCacheEmptyTTL
	}
	return &MySQLSubmissionRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      ttl,
		emptyTTL: emptyTTL,
	}
}

const submissionColumns = "submission_id, problem_id, edition, user_id, competition_id, language, source_code, source_key, source_hash, scored, created_at"

// Create inserts a submission record.
func (r *MySQLSubmissionRepository) Create(ctx context.Context, tx db.Transaction, submission *Submission) error {
	if submission == nil {
		return errors.New("submission is nil")
	}
	if submission.SubmissionID == "" {
		return errors.New("submissionID is required")
	}
	if submission.ProblemID <= 0 {
		return errors.New("problemID is required")
	}
	if submission.UserID <= 0 {
		return errors.New("userID is required")
	}
	if submission.Language == "" {
		return errors.New("language is required")
	}
	if submission.SourceKey == "" {
		return errors.New("sourceKey is required")
	}
	if submission.SourceHash == "" {
		return errors.New("sourceHash is required")
	}

	query := `
		INSERT INTO submissions
		(submission_id, problem_id, edition, user_id, competition_id, language, source_code, source_key, source_hash, scored)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.GetQuerier(r.db, tx).Exec(
		ctx,
		query,
		submission.SubmissionID,
		submission.ProblemID,
		submission.Edition,
		submission.UserID,
		submission.CompetitionID,
		submission.Language,
		submission.SourceCode,
		submission.SourceKey,
		submission.SourceHash,
		submission.Scored,
	)
	if err != nil {
		return err
	}
	if r.cache != nil && tx == nil {
		r.setCache(ctx, submission)
	}
	return nil
}

// GetByID retrieves a submission by id.
func (r *MySQLSubmissionRepository) GetByID(ctx context.Context, tx db.Transaction, submissionID string) (*Submission, error) {
	if submissionID == "" {
		return nil, errors.New("submissionID is required")
	}
	if r.cache != nil && tx == nil {
		submission, err := cache.GetWithCached[*Submission](
			ctx,
			r.cache,
			submissionCacheKey(submissionID),
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(submission *Submission) bool { return submission == nil },
			marshalSubmission,
			unmarshalSubmission,
			func(ctx context.Context) (*Submission, error) {
				submission, err := r.getByIDFromDB(ctx, nil, submissionID)
				if err != nil {
					if errors.Is(err, ErrSubmissionNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return submission, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if submission == nil {
			return nil, ErrSubmissionNotFound
		}
		return submission, nil
	}
	return r.getByIDFromDB(ctx, tx, submissionID)
}

func (r *MySQLSubmissionRepository) getByIDFromDB(ctx context.Context, tx db.Transaction, submissionID string) (*Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE submission_id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, submissionID)
	submission := &Submission{}
	var competitionID *string
	if err := row.Scan(
		&submission.SubmissionID,
		&submission.ProblemID,
		&submission.Edition,
		&submission.UserID,
		&competitionID,
		&submission.Language,
		&submission.SourceCode,
		&submission.SourceKey,
		&submission.SourceHash,
		&submission.Scored,
		&submission.CreatedAt,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, err
	}
	if competitionID != nil {
		submission.CompetitionID = *competitionID
	}
	return submission, nil
}

func (r *MySQLSubmissionRepository) setCache(ctx context.Context, submission *Submission) {
	if submission == nil || r.cache == nil {
		return
	}
	payload := marshalSubmission(submission)
	if payload == "" {
		return
	}
	_ = r.cache.Set(ctx, submissionCacheKey(submission.SubmissionID), payload, cache.JitterTTL(r.ttl))
}

func submissionCacheKey(submissionID string) string {
	return submissionCacheKeyPrefix + submissionID
}

func marshalSubmission(submission *Submission) string {
	if submission == nil {
		return ""
	}
	data, err := json.Marshal(submission)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalSubmission(data string) (*Submission, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var submission Submission
	if err := json.Unmarshal([]byte(data), &submission); err != nil {
		return nil, err
	}
	return &submission, nil
}
