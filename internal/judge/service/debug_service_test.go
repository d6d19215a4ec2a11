package service

import (
	"context"
	"strings"
	"testing"

	"efrog/internal/judge/model"
	"efrog/internal/judge/verdict"
	appErr "efrog/pkg/errors"
)

func debugJob(inputs ...string) model.DebugJob {
	return model.DebugJob{
		SubmissionID: "dbg-1",
		UserID:       30,
		ProblemID:    10,
		Language:     "python",
		SourceCode:   "print(input())",
		Inputs:       inputs,
	}
}

func TestDebugRunsInputsInOrder(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{debugOutput: "echo:"}
	env := newTestEnv(t, eng, threeCases(), threeCaseFiles())

	results, err := env.svc.RunDebug(context.Background(), debugJob("1", "2", "3"))
	if err != nil {
		t.Fatalf("RunDebug: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, res := range results {
		if res.InputIndex != i+1 {
			t.Fatalf("result %d index = %d", i, res.InputIndex)
		}
		if res.Verdict != verdict.DebugOK {
			t.Fatalf("result %d verdict = %v", i, res.Verdict)
		}
		if !strings.HasPrefix(res.Output, "echo:") {
			t.Fatalf("result %d output = %q", i, res.Output)
		}
	}

	if env.gate.Held(30) {
		t.Fatal("gate must be released after the debug run")
	}
	if env.eng.cleanups.Load() != 1 {
		t.Fatal("engine scratch must be cleaned up")
	}
}

func TestDebugNeverTouchesScoringState(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeEngine{}, threeCases(), threeCaseFiles())

	if _, err := env.svc.RunDebug(context.Background(), debugJob("x")); err != nil {
		t.Fatalf("RunDebug: %v", err)
	}

	if rows := env.results.results("dbg-1"); len(rows) != 0 {
		t.Fatalf("debug run persisted %d case results", len(rows))
	}
	if _, ok := env.results.state("dbg-1"); ok {
		t.Fatal("debug run finalized a submission state")
	}
}

func TestDebugCompileFailure(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{compileStatus: 5, compileDesc: "bad token"}
	env := newTestEnv(t, eng, threeCases(), threeCaseFiles())

	results, err := env.svc.RunDebug(context.Background(), debugJob("a", "b"))
	if err != nil {
		t.Fatalf("RunDebug: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, res := range results {
		if res.Verdict != verdict.DebugCompilationError {
			t.Fatalf("result %d verdict = %v, want DebugCompilationError", i, res.Verdict)
		}
		if res.TimeMs != 0 || res.MemoryKB != 0 || res.Output != "" {
			t.Fatalf("compile-failed result has execution data: %+v", res)
		}
	}
}

func TestDebugInputValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeEngine{}, threeCases(), threeCaseFiles())

	if _, err := env.svc.RunDebug(context.Background(), debugJob()); appErr.GetCode(err) != appErr.ValidationFailed {
		t.Fatalf("empty inputs = %v, want ValidationFailed", err)
	}

	many := make([]string, defaultMaxDebugInputs+1)
	for i := range many {
		many[i] = "x"
	}
	if _, err := env.svc.RunDebug(context.Background(), debugJob(many...)); appErr.GetCode(err) != appErr.TooManyDebugInputs {
		t.Fatalf("too many inputs = %v, want TooManyDebugInputs", err)
	}

	huge := strings.Repeat("y", defaultMaxDebugInputBytes+1)
	if _, err := env.svc.RunDebug(context.Background(), debugJob(huge)); appErr.GetCode(err) != appErr.DebugInputTooLarge {
		t.Fatalf("oversized input = %v, want DebugInputTooLarge", err)
	}

	if env.gate.Held(30) {
		t.Fatal("rejected debug requests must not hold the gate")
	}
}

func TestDebugSharesAdmissionSlotWithJudging(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{compileGate: make(chan struct{})}
	env := newTestEnv(t, eng, threeCases(), threeCaseFiles())

	judge := model.JudgeJob{
		SubmissionID: "sub-busy",
		UserID:       30,
		ProblemID:    10,
		SourceCode:   "ok",
		Language:     "go",
	}
	handle, err := env.svc.EnqueueJudge(context.Background(), judge)
	if err != nil {
		t.Fatalf("EnqueueJudge: %v", err)
	}

	if _, err := env.svc.RunDebug(context.Background(), debugJob("x")); appErr.GetCode(err) != appErr.UserAlreadyJudging {
		t.Fatalf("debug while judging = %v, want UserAlreadyJudging", err)
	}

	close(eng.compileGate)
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
