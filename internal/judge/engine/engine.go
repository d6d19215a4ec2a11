// Package engine defines the call interface to the sandboxed execution
// engine used by the judge layer. The engine itself is an external
// daemon; this package only consumes its contract.
package engine

import "context"

// Engine is the high-level execution entrypoint used by the orchestrators.
// Status codes in the results are raw engine codes; callers map them to
// verdicts at the boundary and never pass them further.
type Engine interface {
	Compile(ctx context.Context, req CompileRequest) (CompileResult, error)
	RunCase(ctx context.Context, req RunCaseRequest) (RunResult, error)
	RunDebugInput(ctx context.Context, req DebugRunRequest) (DebugRunResult, error)

	// Cleanup frees per-submission scratch state inside the engine.
	Cleanup(ctx context.Context, submissionID string) error
}

// CompileRequest contains everything needed to compile one submission.
type CompileRequest struct {
	SubmissionID string
	Source       string
	Language     string

	// Custom checker fields are used only when EnableCustomChecker is set.
	EnableCustomChecker bool
	CheckerLanguage     string
	CheckerSource       string
}

// CompileResult carries the engine's compile outcome.
type CompileResult struct {
	Status      int
	Description string
}

// Compiled reports whether compilation succeeded.
func (r CompileResult) Compiled() bool { return r.Status == 0 }

// RunCaseRequest describes one test case execution.
type RunCaseRequest struct {
	SubmissionID string
	TestCaseID   int64
	Language     string
	Input        string
	Expected     string
	TimeLimitS   float64
	MemLimitMB   int
	UseChecker   bool
}

// RunResult carries timing and memory data for one executed case.
type RunResult struct {
	Status    int
	TimeMs    int64
	CPUTimeMs int64
	MemoryKB  int64
}

// DebugRunRequest describes one raw debug input execution.
type DebugRunRequest struct {
	SubmissionID string
	InputIndex   int
	Language     string
	Input        string
	TimeLimitS   float64
	MemLimitMB   int
}

// DebugRunResult additionally carries the program output for display.
type DebugRunResult struct {
	Status    int
	TimeMs    int64
	CPUTimeMs int64
	MemoryKB  int64
	Output    string
}
