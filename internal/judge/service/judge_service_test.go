package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"efrog/internal/common/db"
	"efrog/internal/common/storage"
	"efrog/internal/judge/admission"
	"efrog/internal/judge/engine"
	"efrog/internal/judge/model"
	"efrog/internal/judge/pool"
	"efrog/internal/judge/realtime"
	"efrog/internal/judge/testdata"
	"efrog/internal/judge/verdict"
	pmodel "efrog/internal/problem/model"
	problemrepo "efrog/internal/problem/repository"
	appErr "efrog/pkg/errors"
)

type fakeEngine struct {
	mu sync.Mutex

	compileStatus int
	compileDesc   string
	compileErr    error
	compileGate   chan struct{}

	runErrFor map[int64]error
	runStatus map[int64]int

	debugStatus int
	debugOutput string

	cleanups atomic.Int32
}

func (f *fakeEngine) Compile(ctx context.Context, req engine.CompileRequest) (engine.CompileResult, error) {
	if f.compileGate != nil {
		<-f.compileGate
	}
	if f.compileErr != nil {
		return engine.CompileResult{}, f.compileErr
	}
	return engine.CompileResult{Status: f.compileStatus, Description: f.compileDesc}, nil
}

func (f *fakeEngine) RunCase(ctx context.Context, req engine.RunCaseRequest) (engine.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.runErrFor[req.TestCaseID]; ok {
		return engine.RunResult{}, err
	}
	status := 0
	if f.runStatus != nil {
		status = f.runStatus[req.TestCaseID]
	}
	return engine.RunResult{Status: status, TimeMs: 12, CPUTimeMs: 10, MemoryKB: 1024}, nil
}

func (f *fakeEngine) RunDebugInput(ctx context.Context, req engine.DebugRunRequest) (engine.DebugRunResult, error) {
	return engine.DebugRunResult{
		Status:   f.debugStatus,
		TimeMs:   7,
		MemoryKB: 512,
		Output:   f.debugOutput + req.Input,
	}, nil
}

func (f *fakeEngine) Cleanup(ctx context.Context, submissionID string) error {
	f.cleanups.Add(1)
	return nil
}

type fakeProblemRepo struct {
	problem *pmodel.Problem
	cases   []pmodel.TestCase
}

func (f *fakeProblemRepo) GetByID(ctx context.Context, tx db.Transaction, problemID int64) (*pmodel.Problem, error) {
	if f.problem == nil || f.problem.ID != problemID {
		return nil, problemrepo.ErrProblemNotFound
	}
	return f.problem, nil
}

func (f *fakeProblemRepo) GetTestCases(ctx context.Context, tx db.Transaction, problemID int64, edition int32) ([]pmodel.TestCase, error) {
	return f.cases, nil
}

type fakeResultRepo struct {
	mu        sync.Mutex
	appended  map[string][]model.TestCaseResult
	finalized map[string]model.SubmissionState
	appendErr error
	finalErr  error
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{
		appended:  make(map[string][]model.TestCaseResult),
		finalized: make(map[string]model.SubmissionState),
	}
}

func (f *fakeResultRepo) AppendCaseResult(ctx context.Context, tx db.Transaction, submissionID string, result model.TestCaseResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended[submissionID] = append(f.appended[submissionID], result)
	return nil
}

func (f *fakeResultRepo) ListCaseResults(ctx context.Context, tx db.Transaction, submissionID string) ([]model.TestCaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appended[submissionID], nil
}

func (f *fakeResultRepo) Finalize(ctx context.Context, tx db.Transaction, submissionID string, state model.SubmissionState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalErr != nil {
		return f.finalErr
	}
	f.finalized[submissionID] = state
	return nil
}

func (f *fakeResultRepo) GetState(ctx context.Context, tx db.Transaction, submissionID string) (*model.SubmissionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.finalized[submissionID]
	if !ok {
		return nil, errors.New("not finalized")
	}
	return &state, nil
}

func (f *fakeResultRepo) results(submissionID string) []model.TestCaseResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.TestCaseResult(nil), f.appended[submissionID]...)
}

func (f *fakeResultRepo) state(submissionID string) (model.SubmissionState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.finalized[submissionID]
	return state, ok
}

type deadStorage struct{}

func (deadStorage) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	return nil, errors.New("storage unavailable")
}
func (deadStorage) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, ct string) error {
	return errors.New("storage unavailable")
}
func (deadStorage) StatObject(ctx context.Context, bucket, key string) (storage.ObjectStat, error) {
	return storage.ObjectStat{}, errors.New("storage unavailable")
}
func (deadStorage) RemoveObject(ctx context.Context, bucket, key string) error {
	return errors.New("storage unavailable")
}

// seedPackDir pre-populates the pack cache directory so Get hits disk
// without touching storage.
func seedPackDir(t *testing.T, root string, meta testdata.PackMeta, files map[string]string) {
	t.Helper()
	dir := filepath.Join(root, fmt.Sprintf("%d", meta.ProblemID), fmt.Sprintf("%d", meta.Edition))
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir pack dir: %v", err)
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal meta: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), metaBytes, 0644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

type testEnv struct {
	svc     *Service
	eng     *fakeEngine
	results *fakeResultRepo
	gate    *admission.Gate
	hub     *realtime.Hub
}

func newTestEnv(t *testing.T, eng *fakeEngine, cases []pmodel.TestCase, caseFiles map[string]string) *testEnv {
	t.Helper()

	root := t.TempDir()
	meta := testdata.PackMeta{ProblemID: 10, Edition: 1, PackKey: "packs/10/1", PackHash: "abc"}
	seedPackDir(t, root, meta, caseFiles)

	problems := &fakeProblemRepo{
		problem: &pmodel.Problem{
			ID:         10,
			Edition:    1,
			TimeLimitS: 2,
			MemLimitMB: 256,
			PackKey:    meta.PackKey,
			PackHash:   meta.PackHash,
		},
		cases: cases,
	}
	results := newFakeResultRepo()
	gate := admission.NewGate()
	hub := realtime.NewHub()

	svc, err := NewService(Config{
		Engine:   eng,
		Gate:     gate,
		Hub:      hub,
		Problems: problems,
		Packs: testdata.NewPackCache(testdata.PackCacheConfig{
			RootDir: root,
			TTL:     time.Minute,
			Bucket:  "testdata",
		}, deadStorage{}, nil),
		Results:   results,
		JudgePool: pool.Config{Workers: 2, QueueCap: 8},
		DebugPool: pool.Config{Workers: 1, QueueCap: 4},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return &testEnv{svc: svc, eng: eng, results: results, gate: gate, hub: hub}
}

func threeCases() []pmodel.TestCase {
	return []pmodel.TestCase{
		{ID: 101, ProblemID: 10, Edition: 1, Position: 1, Score: 30, Opened: true},
		{ID: 102, ProblemID: 10, Edition: 1, Position: 2, Score: 30},
		{ID: 103, ProblemID: 10, Edition: 1, Position: 3, Score: 40},
	}
}

func threeCaseFiles() map[string]string {
	return map[string]string{
		"1.in": "a", "1.out": "x",
		"2.in": "b", "2.out": "y",
		"3.in": "c", "3.out": "z",
	}
}

func TestJudgeHappyPath(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeEngine{}, threeCases(), threeCaseFiles())

	job := model.JudgeJob{
		SubmissionID: "sub-1",
		UserID:       5,
		ProblemID:    10,
		SourceCode:   "print(1)",
		Language:     "python",
		IsScored:     true,
	}
	handle, err := env.svc.EnqueueJudge(context.Background(), job)
	if err != nil {
		t.Fatalf("EnqueueJudge: %v", err)
	}
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	state, ok := env.results.state("sub-1")
	if !ok {
		t.Fatal("submission was not finalized")
	}
	if !state.Checked || !state.Compiled {
		t.Fatalf("state = %+v", state)
	}
	if state.CorrectScore != 100 || state.TotalScore != 100 {
		t.Fatalf("scores = %d/%d, want 100/100", state.CorrectScore, state.TotalScore)
	}
	if state.Verdict != verdict.OK {
		t.Fatalf("verdict = %v", state.Verdict)
	}

	if env.gate.Held(5) {
		t.Fatal("gate must be released after the run")
	}
	if env.eng.cleanups.Load() != 1 {
		t.Fatalf("cleanup called %d times, want 1", env.eng.cleanups.Load())
	}
}

func TestCompileFailureStillProducesAllRows(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{compileStatus: 5, compileDesc: "syntax error on line 3"}
	env := newTestEnv(t, eng, threeCases(), threeCaseFiles())

	job := model.JudgeJob{
		SubmissionID: "sub-ce",
		UserID:       6,
		ProblemID:    10,
		SourceCode:   "broken",
		Language:     "cpp",
		IsScored:     true,
	}
	handle, err := env.svc.EnqueueJudge(context.Background(), job)
	if err != nil {
		t.Fatalf("EnqueueJudge: %v", err)
	}
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	rows := env.results.results("sub-ce")
	if len(rows) != 3 {
		t.Fatalf("got %d result rows, want 3", len(rows))
	}
	for _, row := range rows {
		if row.Verdict != verdict.CompilationError {
			t.Fatalf("row verdict = %v, want CompilationError", row.Verdict)
		}
		if row.TimeMs != 0 || row.CPUTimeMs != 0 || row.MemoryKB != 0 {
			t.Fatalf("compile-failed row has non-zero timing: %+v", row)
		}
	}

	state, _ := env.results.state("sub-ce")
	if state.Compiled {
		t.Fatal("state.Compiled should be false")
	}
	if state.CorrectScore != 0 {
		t.Fatalf("correct score = %d, want 0", state.CorrectScore)
	}
	if state.CompilationDetails != "syntax error on line 3" {
		t.Fatalf("details = %q", state.CompilationDetails)
	}
	if state.Verdict != verdict.CompilationError {
		t.Fatalf("verdict = %v", state.Verdict)
	}
}

func TestEngineFaultOnOneCaseContinues(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{runErrFor: map[int64]error{102: errors.New("engine crashed")}}
	env := newTestEnv(t, eng, threeCases(), threeCaseFiles())

	job := model.JudgeJob{
		SubmissionID: "sub-fault",
		UserID:       7,
		ProblemID:    10,
		SourceCode:   "ok",
		Language:     "go",
		IsScored:     true,
	}
	handle, err := env.svc.EnqueueJudge(context.Background(), job)
	if err != nil {
		t.Fatalf("EnqueueJudge: %v", err)
	}
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	rows := env.results.results("sub-fault")
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if rows[0].Verdict != verdict.OK || rows[2].Verdict != verdict.OK {
		t.Fatalf("cases 1 and 3 should pass: %v, %v", rows[0].Verdict, rows[2].Verdict)
	}
	if rows[1].Verdict != verdict.InternalError {
		t.Fatalf("faulted case verdict = %v, want InternalError", rows[1].Verdict)
	}

	state, _ := env.results.state("sub-fault")
	if state.CorrectScore != 70 {
		t.Fatalf("correct score = %d, want 70", state.CorrectScore)
	}
	if state.Verdict != verdict.InternalError {
		t.Fatalf("overall verdict = %v, want InternalError", state.Verdict)
	}
}

func TestMaxSeverityAcrossCases(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{runStatus: map[int64]int{101: 1, 102: 2, 103: 0}}
	env := newTestEnv(t, eng, threeCases(), threeCaseFiles())

	job := model.JudgeJob{
		SubmissionID: "sub-mix",
		UserID:       8,
		ProblemID:    10,
		SourceCode:   "slow",
		Language:     "go",
		IsScored:     true,
	}
	handle, err := env.svc.EnqueueJudge(context.Background(), job)
	if err != nil {
		t.Fatalf("EnqueueJudge: %v", err)
	}
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	state, _ := env.results.state("sub-mix")
	if state.Verdict != verdict.TimeLimitExceeded {
		t.Fatalf("overall verdict = %v, want TimeLimitExceeded", state.Verdict)
	}
	if state.CorrectScore != 40 {
		t.Fatalf("correct score = %d, want 40", state.CorrectScore)
	}
}

func TestPartialMessagesPerCaseAndTotals(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeEngine{}, threeCases(), threeCaseFiles())

	job := model.JudgeJob{
		SubmissionID: "sub-rt",
		UserID:       9,
		ProblemID:    10,
		SourceCode:   "ok",
		Language:     "go",
		IsScored:     true,
	}
	handle, err := env.svc.EnqueueJudge(context.Background(), job)
	if err != nil {
		t.Fatalf("EnqueueJudge: %v", err)
	}

	session, ok := env.hub.Get("sub-rt")
	if !ok {
		t.Fatal("session should exist while judging")
	}
	if !session.Attach() {
		t.Fatal("attach failed")
	}
	defer session.Detach()

	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	messages, _ := session.Drain(0)
	if len(messages) != 4 {
		t.Fatalf("got %d messages, want 3 partial + 1 totals", len(messages))
	}
	for i := 0; i < 3; i++ {
		var partial model.PartialMessage
		if err := json.Unmarshal([]byte(messages[i]), &partial); err != nil {
			t.Fatalf("decode partial %d: %v", i, err)
		}
		if partial.Type != "result" || partial.Status != 202 {
			t.Fatalf("partial %d envelope = %+v", i, partial)
		}
		if partial.Count != i+1 {
			t.Fatalf("partial %d count = %d", i, partial.Count)
		}
	}
	var totals model.TotalsMessage
	if err := json.Unmarshal([]byte(messages[3]), &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if totals.Type != "totals" || totals.Status != 200 {
		t.Fatalf("totals envelope = %+v", totals)
	}
	if totals.Totals.CorrectScore != 100 || !totals.Totals.Compiled {
		t.Fatalf("totals payload = %+v", totals.Totals)
	}
}

func TestPersistenceFailureReleasesGateAndFinishesSession(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &fakeEngine{}, threeCases(), threeCaseFiles())
	env.results.appendErr = errors.New("disk full")

	job := model.JudgeJob{
		SubmissionID: "sub-db",
		UserID:       11,
		ProblemID:    10,
		SourceCode:   "ok",
		Language:     "go",
		IsScored:     true,
	}
	handle, err := env.svc.EnqueueJudge(context.Background(), job)
	if err != nil {
		t.Fatalf("EnqueueJudge: %v", err)
	}

	session, _ := env.hub.Get("sub-db")

	waitErr := handle.Wait(context.Background())
	if appErr.GetCode(waitErr) != appErr.DatabaseError {
		t.Fatalf("Wait = %v, want DatabaseError", waitErr)
	}
	if env.gate.Held(11) {
		t.Fatal("gate must be released on persistence failure")
	}
	if session != nil && !session.Finished() {
		t.Fatal("session must be finished on persistence failure")
	}
	if env.eng.cleanups.Load() != 1 {
		t.Fatal("engine scratch must still be cleaned up")
	}
}

func TestSecondSubmissionSameUserRejected(t *testing.T) {
	t.Parallel()

	eng := &fakeEngine{compileGate: make(chan struct{})}
	env := newTestEnv(t, eng, threeCases(), threeCaseFiles())

	first := model.JudgeJob{
		SubmissionID: "sub-a",
		UserID:       20,
		ProblemID:    10,
		SourceCode:   "ok",
		Language:     "go",
		IsScored:     true,
	}
	handle, err := env.svc.EnqueueJudge(context.Background(), first)
	if err != nil {
		t.Fatalf("EnqueueJudge: %v", err)
	}

	second := first
	second.SubmissionID = "sub-b"
	if _, err := env.svc.EnqueueJudge(context.Background(), second); appErr.GetCode(err) != appErr.UserAlreadyJudging {
		t.Fatalf("second enqueue = %v, want UserAlreadyJudging", err)
	}

	close(eng.compileGate)
	if err := handle.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// Slot is free again once the first job completes.
	third := first
	third.SubmissionID = "sub-c"
	h3, err := env.svc.EnqueueJudge(context.Background(), third)
	if err != nil {
		t.Fatalf("enqueue after completion: %v", err)
	}
	if err := h3.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
