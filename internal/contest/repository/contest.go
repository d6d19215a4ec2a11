package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"efrog/internal/common/cache"
	"efrog/internal/common/db"
	"efrog/internal/contest/model"
)

const (
	defaultContestCacheTTL      = 5 * time.Minute
	defaultContestCacheEmptyTTL = time.Minute
	contestCacheKeyPrefix       = "contest:"
)

var ErrContestNotFound = errors.New("contest not found")

// ContestRepository loads competitions and their scoreboard inputs.
type ContestRepository interface {
	GetByID(ctx context.Context, tx db.Transaction, contestID string) (*model.Contest, error)
	GetProblems(ctx context.Context, tx db.Transaction, contestID string) ([]model.ContestProblem, error)
	GetParticipants(ctx context.Context, tx db.Transaction, contestID string) ([]model.Participant, error)
	GetScoredSubmissions(ctx context.Context, tx db.Transaction, contestID string) ([]model.ScoredSubmission, error)
}

// MySQLContestRepository implements ContestRepository with MySQL.
type MySQLContestRepository struct {
	db       db.Database
	cache    cache.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewContestRepository creates a contest repository.
func NewContestRepository(database db.Database, cacheClient cache.Cache) ContestRepository {
	return &MySQLContestRepository{
		db:       database,
		cache:    cacheClient,
		ttl:      defaultContestCacheTTL,
		emptyTTL: defaultContestCacheEmptyTTL,
	}
}

const contestColumns = "id, title, start_at, end_at, tc, wp, solved_only, as_percentage, edition_pinned"

// GetByID retrieves a contest by id.
func (r *MySQLContestRepository) GetByID(ctx context.Context, tx db.Transaction, contestID string) (*model.Contest, error) {
	if contestID == "" {
		return nil, errors.New("contestID is required")
	}
	if r.cache != nil && tx == nil {
		contest, err := cache.GetWithCached[*model.Contest](
			ctx,
			r.cache,
			contestCacheKeyPrefix+contestID,
			cache.JitterTTL(r.ttl),
			cache.JitterTTL(r.emptyTTL),
			func(contest *model.Contest) bool { return contest == nil },
			marshalContest,
			unmarshalContest,
			func(ctx context.Context) (*model.Contest, error) {
				contest, err := r.getByIDFromDB(ctx, nil, contestID)
				if err != nil {
					if errors.Is(err, ErrContestNotFound) {
						return nil, nil
					}
					return nil, err
				}
				return contest, nil
			},
		)
		if err != nil {
			return nil, err
		}
		if contest == nil {
			return nil, ErrContestNotFound
		}
		return contest, nil
	}
	return r.getByIDFromDB(ctx, tx, contestID)
}

func (r *MySQLContestRepository) getByIDFromDB(ctx context.Context, tx db.Transaction, contestID string) (*model.Contest, error) {
	query := "SELECT " + contestColumns + " FROM contests WHERE id = ? LIMIT 1"
	row := db.GetQuerier(r.db, tx).QueryRow(ctx, query, contestID)
	contest := &model.Contest{}
	if err := row.Scan(
		&contest.ID,
		&contest.Title,
		&contest.StartAt,
		&contest.EndAt,
		&contest.Tc,
		&contest.Wp,
		&contest.SolvedOnly,
		&contest.AsPercentage,
		&contest.EditionPinned,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrContestNotFound
		}
		return nil, err
	}
	return contest, nil
}

// GetProblems returns the contest's problem set in display order.
func (r *MySQLContestRepository) GetProblems(ctx context.Context, tx db.Transaction, contestID string) ([]model.ContestProblem, error) {
	if contestID == "" {
		return nil, errors.New("contestID is required")
	}
	query := `
		SELECT contest_id, problem_id, edition, position
		FROM contest_problems
		WHERE contest_id = ?
		ORDER BY position ASC
	`
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, contestID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var problems []model.ContestProblem
	for rows.Next() {
		var problem model.ContestProblem
		if err := rows.Scan(&problem.ContestID, &problem.ProblemID, &problem.Edition, &problem.Position); err != nil {
			return nil, err
		}
		problems = append(problems, problem)
	}
	return problems, rows.Err()
}

// GetParticipants returns confirmed entrants only.
func (r *MySQLContestRepository) GetParticipants(ctx context.Context, tx db.Transaction, contestID string) ([]model.Participant, error) {
	if contestID == "" {
		return nil, errors.New("contestID is required")
	}
	query := `
		SELECT contest_id, team_id, confirmed
		FROM contest_participants
		WHERE contest_id = ? AND confirmed = 1
		ORDER BY team_id ASC
	`
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, contestID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var participants []model.Participant
	for rows.Next() {
		var participant model.Participant
		if err := rows.Scan(&participant.ContestID, &participant.TeamID, &participant.Confirmed); err != nil {
			return nil, err
		}
		participants = append(participants, participant)
	}
	return participants, rows.Err()
}

// GetScoredSubmissions returns the checked submission history for the
// contest, the scoreboard's raw input.
func (r *MySQLContestRepository) GetScoredSubmissions(ctx context.Context, tx db.Transaction, contestID string) ([]model.ScoredSubmission, error) {
	if contestID == "" {
		return nil, errors.New("contestID is required")
	}
	query := `
		SELECT user_id, problem_id, edition, correct_score, total_score, created_at
		FROM submissions
		WHERE competition_id = ? AND checked = 1
		ORDER BY created_at ASC
	`
	rows, err := db.GetQuerier(r.db, tx).Query(ctx, query, contestID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var submissions []model.ScoredSubmission
	for rows.Next() {
		var submission model.ScoredSubmission
		if err := rows.Scan(
			&submission.TeamID,
			&submission.ProblemID,
			&submission.Edition,
			&submission.CorrectScore,
			&submission.TotalScore,
			&submission.SubmittedAt,
		); err != nil {
			return nil, err
		}
		submissions = append(submissions, submission)
	}
	return submissions, rows.Err()
}

func marshalContest(contest *model.Contest) string {
	if contest == nil {
		return ""
	}
	data, err := json.Marshal(contest)
	if err != nil {
		return ""
	}
	return string(data)
}

func unmarshalContest(data string) (*model.Contest, error) {
	if data == "" || data == cache.NullCacheValue {
		return nil, nil
	}
	var contest model.Contest
	if err := json.Unmarshal([]byte(data), &contest); err != nil {
		return nil, err
	}
	return &contest, nil
}
