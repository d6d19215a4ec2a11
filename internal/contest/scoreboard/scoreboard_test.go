package scoreboard

import (
	"testing"
	"time"

	"efrog/internal/contest/model"
)

var contestStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testContest() *model.Contest {
	return &model.Contest{
		ID:      "spring",
		StartAt: contestStart,
		EndAt:   contestStart.Add(3 * time.Hour),
		Tc:      1,
		Wp:      10,
	}
}

func oneProblem() []model.ContestProblem {
	return []model.ContestProblem{{ContestID: "spring", ProblemID: 10, Position: 1}}
}

func sub(team int64, problem int64, correct, total int, minute int) model.ScoredSubmission {
	return model.ScoredSubmission{
		TeamID:       team,
		ProblemID:    problem,
		CorrectScore: correct,
		TotalScore:   total,
		SubmittedAt:  contestStart.Add(time.Duration(minute) * time.Minute),
	}
}

func TestPenaltyWrongAttemptThenAccept(t *testing.T) {
	t.Parallel()

	// Wrong attempt at minute 2, full-score accept at minute 5 with
	// Tc=1, Wp=10: penalty = 5*1 + 1*10 = 15.
	entries := Compute(testContest(), oneProblem(), []int64{1}, []model.ScoredSubmission{
		sub(1, 10, 40, 100, 2),
		sub(1, 10, 100, 100, 5),
	})
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	cell := entries[0].Problems[0]
	if !cell.Solved {
		t.Fatal("problem should be solved")
	}
	if cell.PenaltyMinutes != 5 {
		t.Fatalf("penalty minutes = %d, want 5", cell.PenaltyMinutes)
	}
	if cell.PenaltyScore != 15 {
		t.Fatalf("penalty score = %d, want 15", cell.PenaltyScore)
	}
	if cell.BestScore == nil || *cell.BestScore != 100 {
		t.Fatalf("best score = %v, want 100", cell.BestScore)
	}
	if cell.AttemptCount != 2 {
		t.Fatalf("attempt count = %d, want 2", cell.AttemptCount)
	}
}

func TestWrongAttemptsAfterAcceptDoNotCount(t *testing.T) {
	t.Parallel()

	entries := Compute(testContest(), oneProblem(), []int64{1}, []model.ScoredSubmission{
		sub(1, 10, 100, 100, 5),
		sub(1, 10, 0, 100, 10),
	})
	cell := entries[0].Problems[0]
	if cell.PenaltyScore != 5 {
		t.Fatalf("penalty score = %d, want 5 (later wrong attempt must not count)", cell.PenaltyScore)
	}
}

func TestUnsolvedHasNoPenalty(t *testing.T) {
	t.Parallel()

	entries := Compute(testContest(), oneProblem(), []int64{1}, []model.ScoredSubmission{
		sub(1, 10, 60, 100, 30),
		sub(1, 10, 70, 100, 60),
	})
	cell := entries[0].Problems[0]
	if cell.Solved {
		t.Fatal("partial score is not solved")
	}
	if cell.PenaltyMinutes != 0 || cell.PenaltyScore != 0 {
		t.Fatalf("unsolved penalty = %d/%d, want 0/0", cell.PenaltyMinutes, cell.PenaltyScore)
	}
	if cell.BestScore == nil || *cell.BestScore != 70 {
		t.Fatalf("best score = %v, want 70", cell.BestScore)
	}
}

func TestUnattemptedIsNull(t *testing.T) {
	t.Parallel()

	entries := Compute(testContest(), oneProblem(), []int64{1, 2}, []model.ScoredSubmission{
		sub(2, 10, 0, 100, 1),
	})

	var idle, zero Entry
	for _, entry := range entries {
		switch entry.TeamID {
		case 1:
			idle = entry
		case 2:
			zero = entry
		}
	}
	if idle.Problems[0].BestScore != nil || idle.TotalScore != nil {
		t.Fatalf("unattempted team must report null scores: %+v", idle)
	}
	if zero.TotalScore == nil || *zero.TotalScore != 0 {
		t.Fatalf("attempted team with zero score must report 0, not null: %+v", zero)
	}
	// Null total ranks below zero total.
	if entries[0].TeamID != 2 || entries[1].TeamID != 1 {
		t.Fatalf("order = %d, %d; want 2, 1", entries[0].TeamID, entries[1].TeamID)
	}
}

func TestNormalizationModes(t *testing.T) {
	t.Parallel()

	subs := []model.ScoredSubmission{sub(1, 10, 67, 200, 5)}

	pct := testContest()
	pct.AsPercentage = true
	entries := Compute(pct, oneProblem(), []int64{1}, subs)
	if got := *entries[0].Problems[0].BestScore; got != 34 {
		t.Fatalf("67/200 as percentage = %d, want 34 (round half up)", got)
	}

	boolean := testContest()
	boolean.SolvedOnly = true
	entries = Compute(boolean, oneProblem(), []int64{1}, subs)
	if got := *entries[0].Problems[0].BestScore; got != 0 {
		t.Fatalf("unsolved boolean score = %d, want 0", got)
	}

	// Boolean takes precedence when both flags are set.
	both := testContest()
	both.SolvedOnly = true
	both.AsPercentage = true
	entries = Compute(both, oneProblem(), []int64{1}, []model.ScoredSubmission{sub(1, 10, 200, 200, 5)})
	if got := *entries[0].Problems[0].BestScore; got != 1 {
		t.Fatalf("solved boolean-and-percentage score = %d, want 1", got)
	}
}

func TestRoundHalfUp(t *testing.T) {
	t.Parallel()

	pct := testContest()
	pct.AsPercentage = true
	entries := Compute(pct, oneProblem(), []int64{1}, []model.ScoredSubmission{sub(1, 10, 1, 200, 5)})
	if got := *entries[0].Problems[0].BestScore; got != 1 {
		t.Fatalf("0.5%% rounds to %d, want 1", got)
	}
}

func TestWindowBoundariesInclusive(t *testing.T) {
	t.Parallel()

	contest := testContest()
	entries := Compute(contest, oneProblem(), []int64{1, 2, 3}, []model.ScoredSubmission{
		{TeamID: 1, ProblemID: 10, CorrectScore: 100, TotalScore: 100, SubmittedAt: contest.StartAt},
		{TeamID: 2, ProblemID: 10, CorrectScore: 100, TotalScore: 100, SubmittedAt: contest.EndAt},
		{TeamID: 3, ProblemID: 10, CorrectScore: 100, TotalScore: 100, SubmittedAt: contest.EndAt.Add(time.Second)},
	})
	for _, entry := range entries {
		cell := entry.Problems[0]
		switch entry.TeamID {
		case 1, 2:
			if !cell.Solved {
				t.Fatalf("team %d submitted on the boundary and must count", entry.TeamID)
			}
		case 3:
			if cell.BestScore != nil {
				t.Fatal("submission after the window must not count")
			}
		}
	}
}

func TestEditionPinning(t *testing.T) {
	t.Parallel()

	contest := testContest()
	contest.EditionPinned = true
	problems := []model.ContestProblem{{ContestID: "spring", ProblemID: 10, Edition: 2, Position: 1}}

	oldEdition := sub(1, 10, 100, 100, 5)
	oldEdition.Edition = 1
	pinned := sub(1, 10, 60, 100, 10)
	pinned.Edition = 2

	entries := Compute(contest, problems, []int64{1}, []model.ScoredSubmission{oldEdition, pinned})
	cell := entries[0].Problems[0]
	if cell.Solved {
		t.Fatal("full score on a stale edition must not count")
	}
	if cell.BestScore == nil || *cell.BestScore != 60 {
		t.Fatalf("best score = %v, want 60", cell.BestScore)
	}
	if cell.AttemptCount != 1 {
		t.Fatalf("attempt count = %d, want 1", cell.AttemptCount)
	}
}

func TestRankingTotalOrder(t *testing.T) {
	t.Parallel()

	problems := []model.ContestProblem{
		{ContestID: "spring", ProblemID: 10, Position: 1},
		{ContestID: "spring", ProblemID: 11, Position: 2},
	}
	entries := Compute(testContest(), problems, []int64{1, 2, 3, 4}, []model.ScoredSubmission{
		// Team 1: 100 points, penalty 5.
		sub(1, 10, 100, 100, 5),
		// Team 2: 100 points, penalty 15 (one wrong attempt).
		sub(2, 10, 0, 100, 2),
		sub(2, 10, 100, 100, 5),
		// Team 3: 150 points.
		sub(3, 10, 100, 100, 10),
		sub(3, 11, 50, 100, 20),
		// Team 4: no attempts.
	})

	got := []int64{entries[0].TeamID, entries[1].TeamID, entries[2].TeamID, entries[3].TeamID}
	want := []int64{3, 1, 2, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ranking = %v, want %v", got, want)
		}
	}
	for i, entry := range entries {
		if entry.Rank != i+1 {
			t.Fatalf("entry %d rank = %d", i, entry.Rank)
		}
	}
}
