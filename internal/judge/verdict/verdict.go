// Package verdict defines the closed verdict taxonomies for judged and
// debug runs and the execution engine status-code mapping.
package verdict

// Verdict classifies the outcome of one judged test case. The numeric
// order is the severity order: OK is weakest, InternalError strongest.
// A submission's overall verdict is the maximum over its test cases.
type Verdict int

const (
	OK Verdict = iota
	WrongAnswer
	TimeLimitExceeded
	MemoryLimitExceeded
	RuntimeError
	CompilationError
	CustomCheckerError
	InternalError
)

var verdictTexts = map[Verdict]string{
	OK:                  "Correct",
	WrongAnswer:         "Wrong answer",
	TimeLimitExceeded:   "Time limit exceeded",
	MemoryLimitExceeded: "Memory limit exceeded",
	RuntimeError:        "Runtime error",
	CompilationError:    "Compilation error",
	CustomCheckerError:  "Custom checker error",
	InternalError:       "Internal error",
}

func (v Verdict) String() string {
	if text, ok := verdictTexts[v]; ok {
		return text
	}
	return "Internal error"
}

// Max returns the more severe of two verdicts. On equal severity the
// first argument wins, which keeps the first-seen verdict text.
func Max(a, b Verdict) Verdict {
	if b > a {
		return b
	}
	return a
}

// Engine status codes. 0 is success; the rest are the engine's small
// integer failure codes. Codes outside the table mean the engine itself
// misbehaved.
const (
	engineStatusOK           = 0
	engineStatusWrongAnswer  = 1
	engineStatusTimeLimit    = 2
	engineStatusMemoryLimit  = 3
	engineStatusRuntimeError = 4
	engineStatusCompileError = 5
	engineStatusCheckerError = 6
)

// FromEngineStatus maps an engine status code to a judging verdict.
// Unknown codes map to InternalError.
func FromEngineStatus(status int) Verdict {
	switch status {
	case engineStatusOK:
		return OK
	case engineStatusWrongAnswer:
		return WrongAnswer
	case engineStatusTimeLimit:
		return TimeLimitExceeded
	case engineStatusMemoryLimit:
		return MemoryLimitExceeded
	case engineStatusRuntimeError:
		return RuntimeError
	case engineStatusCompileError:
		return CompilationError
	case engineStatusCheckerError:
		return CustomCheckerError
	default:
		return InternalError
	}
}

// DebugVerdict classifies the outcome of one debug input. Debug runs
// have no expected output, so there is no wrong-answer outcome and no
// custom checker.
type DebugVerdict int

const (
	DebugOK DebugVerdict = iota
	DebugTimeLimitExceeded
	DebugMemoryLimitExceeded
	DebugRuntimeError
	DebugCompilationError
	DebugInternalError
)

var debugVerdictTexts = map[DebugVerdict]string{
	DebugOK:                  "Completed",
	DebugTimeLimitExceeded:   "Time limit exceeded",
	DebugMemoryLimitExceeded: "Memory limit exceeded",
	DebugRuntimeError:        "Runtime error",
	DebugCompilationError:    "Compilation error",
	DebugInternalError:       "Internal error",
}

func (v DebugVerdict) String() string {
	if text, ok := debugVerdictTexts[v]; ok {
		return text
	}
	return "Internal error"
}

// DebugFromEngineStatus maps an engine status code to a debug verdict.
// The wrong-answer and checker codes cannot legitimately occur on a
// debug run, so they map to DebugInternalError along with unknown codes.
func DebugFromEngineStatus(status int) DebugVerdict {
	switch status {
	case engineStatusOK:
		return DebugOK
	case engineStatusTimeLimit:
		return DebugTimeLimitExceeded
	case engineStatusMemoryLimit:
		return DebugMemoryLimitExceeded
	case engineStatusRuntimeError:
		return DebugRuntimeError
	case engineStatusCompileError:
		return DebugCompilationError
	default:
		return DebugInternalError
	}
}
