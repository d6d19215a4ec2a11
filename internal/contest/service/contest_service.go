// Package service computes contest standings on demand.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"efrog/internal/contest/model"
	"efrog/internal/contest/repository"
	"efrog/internal/contest/scoreboard"
	appErr "efrog/pkg/errors"
)

// ContestService serves scoreboard requests.
type ContestService struct {
	contests repository.ContestRepository
}

// NewContestService creates a new contest service.
func NewContestService(contests repository.ContestRepository) (*ContestService, error) {
	if contests == nil {
		return nil, fmt.Errorf("contest repository is required")
	}
	return &ContestService{contests: contests}, nil
}

// Scoreboard is the computed standings plus contest metadata.
type Scoreboard struct {
	ContestID string             `json:"contest_id"`
	Title     string             `json:"title"`
	StartAt   time.Time          `json:"start_at"`
	EndAt     time.Time          `json:"end_at"`
	Ongoing   bool               `json:"ongoing"`
	Problems  []int64            `json:"problems"`
	Entries   []scoreboard.Entry `json:"entries"`
}

// GetScoreboard loads the contest inputs and runs the scoreboard
// computation synchronously.
func (s *ContestService) GetScoreboard(ctx context.Context, contestID string) (*Scoreboard, error) {
	if contestID == "" {
		return nil, appErr.ValidationError("contest_id", "required")
	}
	contest, err := s.contests.GetByID(ctx, nil, contestID)
	if err != nil {
		if errors.Is(err, repository.ErrContestNotFound) {
			return nil, appErr.New(appErr.ContestNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load contest failed")
	}
	if time.Now().Before(contest.StartAt) {
		return nil, appErr.New(appErr.ContestNotStarted)
	}

	problems, err := s.contests.GetProblems(ctx, nil, contestID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load contest problems failed")
	}
	participants, err := s.contests.GetParticipants(ctx, nil, contestID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load participants failed")
	}
	submissions, err := s.contests.GetScoredSubmissions(ctx, nil, contestID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load submission history failed")
	}

	teams := make([]int64, 0, len(participants))
	for _, participant := range participants {
		teams = append(teams, participant.TeamID)
	}
	problemIDs := make([]int64, 0, len(problems))
	for _, problem := range problems {
		problemIDs = append(problemIDs, problem.ProblemID)
	}

	return &Scoreboard{
		ContestID: contest.ID,
		Title:     contest.Title,
		StartAt:   contest.StartAt,
		EndAt:     contest.EndAt,
		Ongoing:   contest.Ongoing(time.Now()),
		Problems:  problemIDs,
		Entries:   scoreboard.Compute(contest, problems, teams, submissions),
	}, nil
}

// CheckParticipant verifies the user is a confirmed entrant of an
// ongoing contest, used by the intake path for contest submissions.
func (s *ContestService) CheckParticipant(ctx context.Context, contestID string, userID int64) (*model.Contest, error) {
	contest, err := s.contests.GetByID(ctx, nil, contestID)
	if err != nil {
		if errors.Is(err, repository.ErrContestNotFound) {
			return nil, appErr.New(appErr.ContestNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load contest failed")
	}
	now := time.Now()
	if now.Before(contest.StartAt) {
		return nil, appErr.New(appErr.ContestNotStarted)
	}
	if now.After(contest.EndAt) {
		return nil, appErr.New(appErr.ContestEnded)
	}
	participants, err := s.contests.GetParticipants(ctx, nil, contestID)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "load participants failed")
	}
	for _, participant := range participants {
		if participant.TeamID == userID {
			return contest, nil
		}
	}
	return nil, appErr.New(appErr.NotRegistered)
}
