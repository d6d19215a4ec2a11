package service

import (
	"context"
	"errors"

	"efrog/internal/judge/engine"
	"efrog/internal/judge/model"
	"efrog/internal/judge/verdict"
	problemrepo "efrog/internal/problem/repository"
	appErr "efrog/pkg/errors"
	"efrog/pkg/utils/logger"

	"go.uber.org/zap"
)

// Fallback limits for debug runs on problems without explicit limits.
const (
	defaultDebugTimeLimitS = 5.0
	defaultDebugMemLimitMB = 256
)

// RunDebug compiles the code and executes every raw input in order,
// blocking until all inputs finish. Debug runs hold the same per-user
// admission slot as judged submissions but never touch persisted
// scoring state.
func (s *Service) RunDebug(ctx context.Context, job model.DebugJob) ([]model.DebugRunResult, error) {
	if job.SubmissionID == "" {
		return nil, appErr.ValidationError("submission_id", "required")
	}
	if job.UserID <= 0 {
		return nil, appErr.ValidationError("user_id", "required")
	}
	if len(job.Inputs) == 0 {
		return nil, appErr.ValidationError("inputs", "required")
	}
	if len(job.Inputs) > s.maxDebugInputs {
		return nil, appErr.Newf(appErr.TooManyDebugInputs, "at most %d debug inputs allowed", s.maxDebugInputs)
	}
	for i, input := range job.Inputs {
		if len(input) > s.maxDebugInputBytes {
			return nil, appErr.Newf(appErr.DebugInputTooLarge, "input %d exceeds %d bytes", i+1, s.maxDebugInputBytes)
		}
	}

	if !s.gate.TryAcquire(job.UserID) {
		return nil, appErr.New(appErr.UserAlreadyJudging)
	}

	var results []model.DebugRunResult
	handle, err := s.debugPool.Submit(func(jobCtx context.Context) error {
		var runErr error
		results, runErr = s.runDebug(jobCtx, job)
		return runErr
	})
	if err != nil {
		s.gate.Release(job.UserID)
		return nil, err
	}
	if err := handle.Wait(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) runDebug(ctx context.Context, job model.DebugJob) ([]model.DebugRunResult, error) {
	defer s.gate.Release(job.UserID)
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), defaultCleanupTimeout)
		defer cancel()
		if err := s.engine.Cleanup(cleanupCtx, job.SubmissionID); err != nil {
			logger.Warn(ctx, "engine cleanup failed",
				zap.String("submission_id", job.SubmissionID),
				zap.Error(err))
		}
	}()

	timeLimitS := defaultDebugTimeLimitS
	memLimitMB := defaultDebugMemLimitMB
	if job.ProblemID > 0 {
		problem, err := s.problems.GetByID(ctx, nil, job.ProblemID)
		if err != nil {
			if !errors.Is(err, problemrepo.ErrProblemNotFound) {
				return nil, appErr.Wrapf(err, appErr.DatabaseError, "load problem failed")
			}
		} else {
			timeLimitS = problem.TimeLimitS
			memLimitMB = problem.MemLimitMB
		}
	}

	compiled, compileVerdict := s.compileDebug(ctx, job)

	results := make([]model.DebugRunResult, 0, len(job.Inputs))
	for i, input := range job.Inputs {
		if !compiled {
			results = append(results, model.DebugRunResult{
				InputIndex: i + 1,
				Verdict:    compileVerdict,
			})
			continue
		}

		res, err := s.engine.RunDebugInput(ctx, engine.DebugRunRequest{
			SubmissionID: job.SubmissionID,
			InputIndex:   i + 1,
			Language:     job.Language,
			Input:        input,
			TimeLimitS:   timeLimitS,
			MemLimitMB:   memLimitMB,
		})
		if err != nil {
			logger.Error(ctx, "engine debug run failed",
				zap.String("submission_id", job.SubmissionID),
				zap.Int("input_index", i+1),
				zap.Error(err))
			results = append(results, model.DebugRunResult{
				InputIndex: i + 1,
				Verdict:    verdict.DebugInternalError,
			})
			continue
		}
		results = append(results, model.DebugRunResult{
			InputIndex: i + 1,
			Verdict:    verdict.DebugFromEngineStatus(res.Status),
			TimeMs:     res.TimeMs,
			CPUTimeMs:  res.CPUTimeMs,
			MemoryKB:   res.MemoryKB,
			Output:     res.Output,
		})
	}
	return results, nil
}

func (s *Service) compileDebug(ctx context.Context, job model.DebugJob) (bool, verdict.DebugVerdict) {
	res, err := s.engine.Compile(ctx, engine.CompileRequest{
		SubmissionID: job.SubmissionID,
		Source:       job.SourceCode,
		Language:     job.Language,
	})
	if err != nil {
		logger.Error(ctx, "engine compile failed",
			zap.String("submission_id", job.SubmissionID),
			zap.Error(err))
		return false, verdict.DebugInternalError
	}
	if res.Compiled() {
		return true, verdict.DebugOK
	}
	return false, verdict.DebugFromEngineStatus(res.Status)
}
