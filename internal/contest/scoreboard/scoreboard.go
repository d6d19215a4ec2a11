// Package scoreboard turns raw submission history into ranked,
// penalty-adjusted standings. The computation is pure; callers load
// the inputs and run it synchronously on the request.
package scoreboard

import (
	"sort"
	"time"

	"efrog/internal/contest/model"
)

// ProblemCell is one team's outcome on one problem. BestScore is nil
// when the team never attempted the problem in the window.
type ProblemCell struct {
	ProblemID      int64 `json:"problem_id"`
	BestScore      *int  `json:"best_score"`
	Solved         bool  `json:"solved"`
	PenaltyMinutes int   `json:"penalty_minutes"`
	PenaltyScore   int   `json:"penalty_score"`
	AttemptCount   int   `json:"attempt_count"`
}

// Entry is one team's standing. TotalScore is nil only when every
// problem is unattempted, distinguishing "no attempts" from "zero
// score".
type Entry struct {
	Rank         int           `json:"rank"`
	TeamID       int64         `json:"team_id"`
	Problems     []ProblemCell `json:"problems"`
	TotalScore   *int          `json:"total_score"`
	TotalPenalty int           `json:"total_penalty"`
}

// Compute builds the ranked standings for the given contest. Only
// submissions inside the inclusive contest window count, and when the
// contest pins problem editions only edition-matching submissions
// count.
func Compute(contest *model.Contest, problems []model.ContestProblem, teams []int64, submissions []model.ScoredSubmission) []Entry {
	byTeamProblem := make(map[int64]map[int64][]model.ScoredSubmission)
	for _, sub := range submissions {
		if !inWindow(contest, sub.SubmittedAt) {
			continue
		}
		perProblem, ok := byTeamProblem[sub.TeamID]
		if !ok {
			perProblem = make(map[int64][]model.ScoredSubmission)
			byTeamProblem[sub.TeamID] = perProblem
		}
		perProblem[sub.ProblemID] = append(perProblem[sub.ProblemID], sub)
	}

	entries := make([]Entry, 0, len(teams))
	for _, teamID := range teams {
		entry := Entry{TeamID: teamID, Problems: make([]ProblemCell, 0, len(problems))}
		attempted := false
		total := 0
		for _, problem := range problems {
			cell := computeCell(contest, problem, byTeamProblem[teamID][problem.ProblemID])
			entry.Problems = append(entry.Problems, cell)
			entry.TotalPenalty += cell.PenaltyScore
			if cell.BestScore != nil {
				attempted = true
				total += *cell.BestScore
			}
		}
		if attempted {
			score := total
			entry.TotalScore = &score
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return outranks(entries[i], entries[j])
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

func computeCell(contest *model.Contest, problem model.ContestProblem, attempts []model.ScoredSubmission) ProblemCell {
	cell := ProblemCell{ProblemID: problem.ProblemID}

	matching := attempts[:0:0]
	for _, attempt := range attempts {
		if contest.EditionPinned && problem.Edition > 0 && attempt.Edition != problem.Edition {
			continue
		}
		matching = append(matching, attempt)
	}
	cell.AttemptCount = len(matching)
	if len(matching) == 0 {
		return cell
	}

	best := matching[0]
	for _, attempt := range matching[1:] {
		if attempt.CorrectScore > best.CorrectScore {
			best = attempt
		}
	}
	cell.Solved = best.TotalScore > 0 && best.CorrectScore == best.TotalScore

	normalized := normalizeScore(contest, best.CorrectScore, best.TotalScore, cell.Solved)
	cell.BestScore = &normalized

	if cell.Solved {
		acceptedAt := time.Time{}
		for _, attempt := range matching {
			accepted := attempt.TotalScore > 0 && attempt.CorrectScore == attempt.TotalScore
			if accepted && (acceptedAt.IsZero() || attempt.SubmittedAt.Before(acceptedAt)) {
				acceptedAt = attempt.SubmittedAt
			}
		}
		wrongAttempts := 0
		for _, attempt := range matching {
			accepted := attempt.TotalScore > 0 && attempt.CorrectScore == attempt.TotalScore
			if !accepted && attempt.SubmittedAt.Before(acceptedAt) {
				wrongAttempts++
			}
		}
		cell.PenaltyMinutes = int(acceptedAt.Sub(contest.StartAt) / time.Minute)
		cell.PenaltyScore = cell.PenaltyMinutes*contest.Tc + wrongAttempts*contest.Wp
	}
	return cell
}

// normalizeScore applies the contest scoring mode. Solved-only wins
// when both flags are set.
func normalizeScore(contest *model.Contest, best, total int, solved bool) int {
	if contest.SolvedOnly {
		if solved {
			return 1
		}
		return 0
	}
	if contest.AsPercentage {
		if total <= 0 {
			return 0
		}
		return (best*200 + total) / (total * 2)
	}
	return best
}

// outranks defines the total ranking order: total score descending
// with null last, then total penalty ascending, then team id for
// determinism.
func outranks(a, b Entry) bool {
	switch {
	case a.TotalScore == nil && b.TotalScore == nil:
	case a.TotalScore == nil:
		return false
	case b.TotalScore == nil:
		return true
	case *a.TotalScore != *b.TotalScore:
		return *a.TotalScore > *b.TotalScore
	}
	if a.TotalPenalty != b.TotalPenalty {
		return a.TotalPenalty < b.TotalPenalty
	}
	return a.TeamID < b.TeamID
}

func inWindow(contest *model.Contest, at time.Time) bool {
	return !at.Before(contest.StartAt) && !at.After(contest.EndAt)
}
