package model

import "efrog/internal/judge/verdict"

// TestCaseResult is one persisted per-case outcome. Never mutated
// after creation.
type TestCaseResult struct {
	TestCaseID int64
	Verdict    verdict.Verdict
	TimeMs     int64
	CPUTimeMs  int64
	MemoryKB   int64
}

// SubmissionState is the terminal aggregate for one submission. It is
// written exactly once by the owning orchestrator run and immutable
// once Checked is set.
type SubmissionState struct {
	Compiled           bool
	CompilationDetails string
	CorrectScore       int
	TotalScore         int
	Verdict            verdict.Verdict
	Checked            bool
}

// DebugRunResult is one debug input's outcome, delivered synchronously
// to the caller. Debug runs never touch persisted scoring state.
type DebugRunResult struct {
	InputIndex int
	Verdict    verdict.DebugVerdict
	TimeMs     int64
	CPUTimeMs  int64
	MemoryKB   int64
	Output     string
}

// JudgePhase is the lifecycle state published to the status snapshot.
type JudgePhase string

const (
	PhasePending  JudgePhase = "Pending"
	PhaseRunning  JudgePhase = "Running"
	PhaseFinished JudgePhase = "Finished"
	PhaseFailed   JudgePhase = "Failed"
)

// StatusSnapshot is the redis-backed live progress view read by the
// retrieval endpoint while a submission is unchecked.
type StatusSnapshot struct {
	SubmissionID string     `json:"submission_id"`
	Phase        JudgePhase `json:"phase"`
	TotalCases   int        `json:"total_cases"`
	DoneCases    int        `json:"done_cases"`
	UpdatedAt    int64      `json:"updated_at"`
}

// SubmissionFinishedEvent is the kafka payload published when a
// submission reaches its terminal state.
type SubmissionFinishedEvent struct {
	SubmissionID string `json:"submission_id"`
	UserID       int64  `json:"user_id"`
	ProblemID    int64  `json:"problem_id"`
	ContestID    int64  `json:"contest_id,omitempty"`
	Compiled     bool   `json:"compiled"`
	CorrectScore int    `json:"correct_score"`
	TotalScore   int    `json:"total_score"`
	Verdict      string `json:"verdict"`
	FinishedAt   int64  `json:"finished_at"`
}
