// Package model defines the judge domain's data types: jobs, per-case
// results, submission state and the realtime wire messages.
package model

// CustomCheckerSpec carries the optional checker program compiled
// alongside the submission.
type CustomCheckerSpec struct {
	Language string
	Source   string
}

// JudgeJob is the unit of work consumed by a judging worker. Created
// when a submission is accepted; immutable; consumed exactly once.
type JudgeJob struct {
	SubmissionID  string
	UserID        int64
	ProblemID     int64
	Edition       int32
	SourceCode    string
	Language      string
	IsScored      bool
	CustomChecker *CustomCheckerSpec
}

// DebugJob is the unit of work consumed by a debugging worker.
type DebugJob struct {
	SubmissionID string
	UserID       int64
	ProblemID    int64
	Language     string
	SourceCode   string
	Inputs       []string
}
