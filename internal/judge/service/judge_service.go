// Package service implements the judging and debugging orchestrators.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"efrog/internal/judge/admission"
	"efrog/internal/judge/engine"
	"efrog/internal/judge/model"
	"efrog/internal/judge/pool"
	"efrog/internal/judge/realtime"
	"efrog/internal/judge/repository"
	"efrog/internal/judge/testdata"
	"efrog/internal/judge/verdict"
	pmodel "efrog/internal/problem/model"
	problemrepo "efrog/internal/problem/repository"
	appErr "efrog/pkg/errors"
	"efrog/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultStatusTimeout      = 3 * time.Second
	defaultCleanupTimeout     = 10 * time.Second
	defaultMaxDebugInputs     = 10
	defaultMaxDebugInputBytes = 64 << 10
)

// Service owns the judging and debugging worker pools and drives
// submissions through the execution engine.
type Service struct {
	engine     engine.Engine
	gate       *admission.Gate
	hub        *realtime.Hub
	problems   problemrepo.ProblemRepository
	packs      *testdata.PackCache
	results    repository.ResultRepository
	statusRepo *repository.StatusRepository
	events     repository.EventPublisher

	judgePool *pool.Pool
	debugPool *pool.Pool

	statusTimeout      time.Duration
	maxDebugInputs     int
	maxDebugInputBytes int
}

// Config holds service dependencies and settings.
type Config struct {
	Engine     engine.Engine
	Gate       *admission.Gate
	Hub        *realtime.Hub
	Problems   problemrepo.ProblemRepository
	Packs      *testdata.PackCache
	Results    repository.ResultRepository
	StatusRepo *repository.StatusRepository
	Events     repository.EventPublisher

	JudgePool pool.Config
	DebugPool pool.Config

	StatusTimeout      time.Duration
	MaxDebugInputs     int
	MaxDebugInputBytes int
}

// NewService creates a new judge service and starts its worker pools.
func NewService(cfg Config) (*Service, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Gate == nil {
		return nil, fmt.Errorf("admission gate is required")
	}
	if cfg.Hub == nil {
		return nil, fmt.Errorf("realtime hub is required")
	}
	if cfg.Problems == nil {
		return nil, fmt.Errorf("problem repository is required")
	}
	if cfg.Results == nil {
		return nil, fmt.Errorf("result repository is required")
	}
	if cfg.JudgePool.Workers <= 0 {
		cfg.JudgePool.Workers = 4
	}
	if cfg.DebugPool.Workers <= 0 {
		cfg.DebugPool.Workers = 2
	}
	if cfg.StatusTimeout <= 0 {
		cfg.StatusTimeout = defaultStatusTimeout
	}
	if cfg.MaxDebugInputs <= 0 {
		cfg.MaxDebugInputs = defaultMaxDebugInputs
	}
	if cfg.MaxDebugInputBytes <= 0 {
		cfg.MaxDebugInputBytes = defaultMaxDebugInputBytes
	}
	return &Service{
		engine:             cfg.Engine,
		gate:               cfg.Gate,
		hub:                cfg.Hub,
		problems:           cfg.Problems,
		packs:              cfg.Packs,
		results:            cfg.Results,
		statusRepo:         cfg.StatusRepo,
		events:             cfg.Events,
		judgePool:          pool.New("judging", cfg.JudgePool),
		debugPool:          pool.New("debugging", cfg.DebugPool),
		statusTimeout:      cfg.StatusTimeout,
		maxDebugInputs:     cfg.MaxDebugInputs,
		maxDebugInputBytes: cfg.MaxDebugInputBytes,
	}, nil
}

// Gate exposes the admission gate for diagnostics.
func (s *Service) Gate() *admission.Gate { return s.gate }

// Hub exposes the realtime hub for the live channel transport.
func (s *Service) Hub() *realtime.Hub { return s.hub }

// Shutdown drains both pools.
func (s *Service) Shutdown(ctx context.Context) error {
	judgeErr := s.judgePool.Shutdown(ctx)
	debugErr := s.debugPool.Shutdown(ctx)
	if judgeErr != nil {
		return judgeErr
	}
	return debugErr
}

// EnqueueJudge acquires the user's admission slot, creates the
// submission's realtime session, and hands the job to the judging
// pool. The returned handle can be waited on for synchronous callers.
func (s *Service) EnqueueJudge(ctx context.Context, job model.JudgeJob) (*pool.Handle, error) {
	if job.SubmissionID == "" {
		return nil, appErr.ValidationError("submission_id", "required")
	}
	if job.UserID <= 0 {
		return nil, appErr.ValidationError("user_id", "required")
	}
	if job.ProblemID <= 0 {
		return nil, appErr.ValidationError("problem_id", "required")
	}
	if !s.gate.TryAcquire(job.UserID) {
		return nil, appErr.New(appErr.UserAlreadyJudging)
	}

	session := s.hub.Create(job.SubmissionID)
	handle, err := s.judgePool.Submit(func(jobCtx context.Context) error {
		return s.runJudge(jobCtx, job, session)
	})
	if err != nil {
		session.Finish()
		s.hub.Reap(job.SubmissionID)
		s.gate.Release(job.UserID)
		return nil, err
	}
	return handle, nil
}

// runJudge is the per-submission state machine: compile, run every
// test case in order, finalize. It always releases the admission gate,
// finishes the realtime session, and frees engine scratch state, even
// when persistence fails.
func (s *Service) runJudge(ctx context.Context, job model.JudgeJob, session *realtime.Session) error {
	defer s.gate.Release(job.UserID)
	defer func() {
		session.Finish()
		s.hub.Reap(job.SubmissionID)
	}()
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), defaultCleanupTimeout)
		defer cancel()
		if err := s.engine.Cleanup(cleanupCtx, job.SubmissionID); err != nil {
			logger.Warn(ctx, "engine cleanup failed",
				zap.String("submission_id", job.SubmissionID),
				zap.Error(err))
		}
	}()

	s.saveSnapshot(ctx, model.StatusSnapshot{
		SubmissionID: job.SubmissionID,
		Phase:        model.PhasePending,
	})

	problem, err := s.problems.GetByID(ctx, nil, job.ProblemID)
	if err != nil {
		s.failSnapshot(ctx, job.SubmissionID)
		if errors.Is(err, problemrepo.ErrProblemNotFound) {
			return appErr.New(appErr.ProblemNotFound)
		}
		return appErr.Wrapf(err, appErr.DatabaseError, "load problem failed")
	}
	edition := job.Edition
	if edition <= 0 {
		edition = problem.Edition
	}
	cases, err := s.problems.GetTestCases(ctx, nil, job.ProblemID, edition)
	if err != nil {
		s.failSnapshot(ctx, job.SubmissionID)
		return appErr.Wrapf(err, appErr.DatabaseError, "load test cases failed")
	}
	if len(cases) == 0 {
		s.failSnapshot(ctx, job.SubmissionID)
		return appErr.New(appErr.TestDataUnavailable).WithMessage("problem has no test cases")
	}

	packDir := ""
	if problem.PackKey != "" && s.packs != nil {
		packDir, err = s.packs.Get(ctx, testdata.PackMeta{
			ProblemID: job.ProblemID,
			Edition:   edition,
			PackKey:   problem.PackKey,
			PackHash:  problem.PackHash,
		})
		if err != nil {
			s.failSnapshot(ctx, job.SubmissionID)
			return appErr.Wrapf(err, appErr.TestDataUnavailable, "fetch test data pack failed")
		}
	}

	s.saveSnapshot(ctx, model.StatusSnapshot{
		SubmissionID: job.SubmissionID,
		Phase:        model.PhaseRunning,
		TotalCases:   len(cases),
	})

	compiled, compileVerdict, details := s.compile(ctx, job, problem)

	state := model.SubmissionState{
		Compiled:           compiled,
		CompilationDetails: details,
	}
	overall := verdict.OK
	correctScore := 0
	totalScore := 0

	for i, tc := range cases {
		totalScore += tc.Score

		var caseResult model.TestCaseResult
		if !compiled {
			caseResult = model.FailedCaseResult(tc.ID, compileVerdict)
		} else {
			caseResult = s.runCase(ctx, job, problem, packDir, tc.ID, tc.Position)
		}

		if err := s.results.AppendCaseResult(ctx, nil, job.SubmissionID, caseResult); err != nil {
			s.failSnapshot(ctx, job.SubmissionID)
			return appErr.Wrapf(err, appErr.DatabaseError, "persist case result failed")
		}

		if job.IsScored && caseResult.Verdict == verdict.OK {
			correctScore += tc.Score
		}
		overall = verdict.Max(overall, caseResult.Verdict)

		session.Append(model.NewPartialMessage(i+1, caseResult, tc.Score, tc.Opened))
		s.saveSnapshot(ctx, model.StatusSnapshot{
			SubmissionID: job.SubmissionID,
			Phase:        model.PhaseRunning,
			TotalCases:   len(cases),
			DoneCases:    i + 1,
		})
	}

	state.CorrectScore = correctScore
	state.TotalScore = totalScore
	state.Verdict = overall
	state.Checked = true

	if err := s.results.Finalize(ctx, nil, job.SubmissionID, state); err != nil {
		s.failSnapshot(ctx, job.SubmissionID)
		return appErr.Wrapf(err, appErr.DatabaseError, "finalize submission failed")
	}

	session.Append(model.NewTotalsMessage(state))
	s.saveSnapshot(ctx, model.StatusSnapshot{
		SubmissionID: job.SubmissionID,
		Phase:        model.PhaseFinished,
		TotalCases:   len(cases),
		DoneCases:    len(cases),
	})
	s.publishFinished(ctx, job, state)
	return nil
}

func (s *Service) compile(ctx context.Context, job model.JudgeJob, problem *pmodel.Problem) (bool, verdict.Verdict, string) {
	req := engine.CompileRequest{
		SubmissionID: job.SubmissionID,
		Source:       job.SourceCode,
		Language:     job.Language,
	}
	checker := job.CustomChecker
	if checker == nil && problem.UseCustomChecker {
		checker = &model.CustomCheckerSpec{
			Language: problem.CheckerLanguage,
			Source:   problem.CheckerSource,
		}
	}
	if checker != nil {
		req.EnableCustomChecker = true
		req.CheckerLanguage = checker.Language
		req.CheckerSource = checker.Source
	}

	res, err := s.engine.Compile(ctx, req)
	if err != nil {
		logger.Error(ctx, "engine compile failed",
			zap.String("submission_id", job.SubmissionID),
			zap.Error(err))
		return false, verdict.InternalError, "execution engine unavailable"
	}
	if res.Compiled() {
		return true, verdict.OK, res.Description
	}
	return false, verdict.FromEngineStatus(res.Status), res.Description
}

func (s *Service) runCase(ctx context.Context, job model.JudgeJob, problem *pmodel.Problem, packDir string, testCaseID int64, position int) model.TestCaseResult {
	input, expected, err := readCaseData(packDir, position)
	if err != nil {
		logger.Error(ctx, "read test case data failed",
			zap.String("submission_id", job.SubmissionID),
			zap.Int64("test_case_id", testCaseID),
			zap.Error(err))
		return model.FailedCaseResult(testCaseID, verdict.InternalError)
	}

	res, err := s.engine.RunCase(ctx, engine.RunCaseRequest{
		SubmissionID: job.SubmissionID,
		TestCaseID:   testCaseID,
		Language:     job.Language,
		Input:        input,
		Expected:     expected,
		TimeLimitS:   problem.TimeLimitS,
		MemLimitMB:   problem.MemLimitMB,
		UseChecker:   job.CustomChecker != nil || problem.UseCustomChecker,
	})
	if err != nil {
		// A single engine fault maps to this case's InternalError and
		// does not abort the remaining cases.
		logger.Error(ctx, "engine run case failed",
			zap.String("submission_id", job.SubmissionID),
			zap.Int64("test_case_id", testCaseID),
			zap.Error(err))
		return model.FailedCaseResult(testCaseID, verdict.InternalError)
	}
	return model.TestCaseResult{
		TestCaseID: testCaseID,
		Verdict:    verdict.FromEngineStatus(res.Status),
		TimeMs:     res.TimeMs,
		CPUTimeMs:  res.CPUTimeMs,
		MemoryKB:   res.MemoryKB,
	}
}

func readCaseData(packDir string, position int) (string, string, error) {
	if packDir == "" {
		return "", "", fmt.Errorf("no test data pack available")
	}
	input, err := os.ReadFile(filepath.Join(packDir, fmt.Sprintf("%d.in", position)))
	if err != nil {
		return "", "", fmt.Errorf("read case input: %w", err)
	}
	expected, err := os.ReadFile(filepath.Join(packDir, fmt.Sprintf("%d.out", position)))
	if err != nil {
		return "", "", fmt.Errorf("read case expected output: %w", err)
	}
	return string(input), string(expected), nil
}

func (s *Service) saveSnapshot(ctx context.Context, snapshot model.StatusSnapshot) {
	if s.statusRepo == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, s.statusTimeout)
	defer cancel()
	if err := s.statusRepo.Save(saveCtx, snapshot); err != nil {
		logger.Warn(ctx, "save status snapshot failed",
			zap.String("submission_id", snapshot.SubmissionID),
			zap.Error(err))
	}
}

func (s *Service) failSnapshot(ctx context.Context, submissionID string) {
	s.saveSnapshot(ctx, model.StatusSnapshot{
		SubmissionID: submissionID,
		Phase:        model.PhaseFailed,
	})
}

func (s *Service) publishFinished(ctx context.Context, job model.JudgeJob, state model.SubmissionState) {
	if s.events == nil {
		return
	}
	event := model.SubmissionFinishedEvent{
		SubmissionID: job.SubmissionID,
		UserID:       job.UserID,
		ProblemID:    job.ProblemID,
		Compiled:     state.Compiled,
		CorrectScore: state.CorrectScore,
		TotalScore:   state.TotalScore,
		Verdict:      state.Verdict.String(),
		FinishedAt:   time.Now().Unix(),
	}
	if err := s.events.PublishFinished(ctx, event); err != nil {
		logger.Warn(ctx, "publish finished event failed",
			zap.String("submission_id", job.SubmissionID),
			zap.Error(err))
	}
}
