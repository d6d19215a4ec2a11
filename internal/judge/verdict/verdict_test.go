package verdict

import "testing"

func TestFromEngineStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   Verdict
	}{
		{0, OK},
		{1, WrongAnswer},
		{2, TimeLimitExceeded},
		{3, MemoryLimitExceeded},
		{4, RuntimeError},
		{5, CompilationError},
		{6, CustomCheckerError},
		{7, InternalError},
		{-1, InternalError},
		{255, InternalError},
	}
	for _, tc := range cases {
		if got := FromEngineStatus(tc.status); got != tc.want {
			t.Errorf("FromEngineStatus(%d) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestDebugFromEngineStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status int
		want   DebugVerdict
	}{
		{0, DebugOK},
		{2, DebugTimeLimitExceeded},
		{3, DebugMemoryLimitExceeded},
		{4, DebugRuntimeError},
		{5, DebugCompilationError},
		{1, DebugInternalError},
		{6, DebugInternalError},
		{42, DebugInternalError},
	}
	for _, tc := range cases {
		if got := DebugFromEngineStatus(tc.status); got != tc.want {
			t.Errorf("DebugFromEngineStatus(%d) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestMaxSeverity(t *testing.T) {
	t.Parallel()

	if got := Max(OK, WrongAnswer); got != WrongAnswer {
		t.Fatalf("Max(OK, WrongAnswer) = %v", got)
	}
	if got := Max(TimeLimitExceeded, OK); got != TimeLimitExceeded {
		t.Fatalf("Max(TimeLimitExceeded, OK) = %v", got)
	}
	// Equal severity keeps the first operand.
	if got := Max(RuntimeError, RuntimeError); got != RuntimeError {
		t.Fatalf("Max on equal severity = %v", got)
	}
	if InternalError <= CompilationError {
		t.Fatal("InternalError must outrank CompilationError")
	}
}

func TestVerdictText(t *testing.T) {
	t.Parallel()

	if OK.String() != "Correct" {
		t.Fatalf("OK text = %q", OK.String())
	}
	if Verdict(99).String() != "Internal error" {
		t.Fatalf("unknown verdict text = %q", Verdict(99).String())
	}
	if DebugOK.String() != "Completed" {
		t.Fatalf("DebugOK text = %q", DebugOK.String())
	}
}
