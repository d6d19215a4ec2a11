// Package model defines competition records.
package model

import "time"

// Contest is a timed competition. Tc is the score deducted per minute
// between contest start and a problem's first accept; Wp is the score
// deducted per wrong attempt before the accept.
type Contest struct {
	ID            string
	Title         string
	StartAt       time.Time
	EndAt         time.Time
	Tc            int
	Wp            int
	SolvedOnly    bool
	AsPercentage  bool
	EditionPinned bool
}

// Ongoing reports whether the contest window contains now. Boundaries
// are inclusive.
func (c *Contest) Ongoing(now time.Time) bool {
	return !now.Before(c.StartAt) && !now.After(c.EndAt)
}

// ContestProblem is one problem of the contest's set, pinned at an
// edition when the contest is configured with edition pinning.
type ContestProblem struct {
	ContestID string
	ProblemID int64
	Edition   int32
	Position  int
}

// Participant is a confirmed contest entrant.
type Participant struct {
	ContestID string
	TeamID    int64
	Confirmed bool
}

// ScoredSubmission is the slice of a persisted submission the
// scoreboard needs.
type ScoredSubmission struct {
	TeamID       int64
	ProblemID    int64
	Edition      int32
	CorrectScore int
	TotalScore   int
	SubmittedAt  time.Time
}
