// Package service implements submission intake: validation, source
// archival, row creation, and hand-off to the judging pool.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"efrog/internal/common/cache"
	"efrog/internal/common/storage"
	contestModel "efrog/internal/contest/model"
	"efrog/internal/judge/model"
	judgeRepo "efrog/internal/judge/repository"
	judgeService "efrog/internal/judge/service"
	"efrog/internal/submit/repository"
	appErr "efrog/pkg/errors"
	"efrog/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	idempotencyKeyPrefix = "submit:idempotency:"
	rateUserKeyPrefix    = "submit:rate:user:"
	defaultSourcePrefix  = "submissions"
	defaultMaxCodeBytes  = 256 << 10
	processingMarker     = "processing"

	// ModeSync blocks the caller until the run finishes; ModeRealtime
	// returns immediately with the live channel path.
	ModeSync     = "sync"
	ModeRealtime = "realtime"
)

// ParticipantChecker verifies contest entry for contest submissions.
type ParticipantChecker interface {
	CheckParticipant(ctx context.Context, contestID string, userID int64) (*contestModel.Contest, error)
}

// RateLimitConfig holds per-user submission throttling.
type RateLimitConfig struct {
	UserMax int           `yaml:"userMax"`
	Window  time.Duration `yaml:"window"`
}

// TimeoutConfig holds timeout settings for external calls.
type TimeoutConfig struct {
	DB      time.Duration `yaml:"db"`
	Cache   time.Duration `yaml:"cache"`
	Storage time.Duration `yaml:"storage"`
}

// Config holds submit service dependencies and settings.
type Config struct {
	SubmissionRepo repository.SubmissionRepository
	Results        judgeRepo.ResultRepository
	StatusRepo     *judgeRepo.StatusRepository
	Judge          *judgeService.Service
	Storage        storage.ObjectStorage
	Cache          cache.Cache
	Contests       ParticipantChecker

	SourceBucket    string
	SourceKeyPrefix string
	Languages       []string
	MaxCodeBytes    int
	IdempotencyTTL  time.Duration
	RateLimit       RateLimitConfig
	Timeouts        TimeoutConfig
	RealtimePath    string
}

// SubmitService handles submission intake and result retrieval.
type SubmitService struct {
	submissionRepo repository.SubmissionRepository
	results        judgeRepo.ResultRepository
	statusRepo     *judgeRepo.StatusRepository
	judge          *judgeService.Service
	storage        storage.ObjectStorage
	cache          cache.Cache
	contests       ParticipantChecker

	sourceBucket    string
	sourceKeyPrefix string
	languages       map[string]struct{}
	maxCodeBytes    int
	idempotencyTTL  time.Duration
	rateLimit       RateLimitConfig
	timeouts        TimeoutConfig
	realtimePath    string
}

// SubmitInput describes a submission request.
type SubmitInput struct {
	ProblemID       int64
	Edition         int32
	UserID          int64
	CompetitionID   string
	Language        string
	SourceCode      string
	Scored          bool
	Mode            string
	CheckerLanguage string
	CheckerSource   string
	IdempotencyKey  string
}

// SubmitOutput is the intake result. Finished is true only in sync
// mode after the run completed; otherwise RealtimeURL points at the
// live channel.
type SubmitOutput struct {
	SubmissionID string
	Finished     bool
	State        *model.SubmissionState
	CaseResults  []model.TestCaseResult
	RealtimeURL  string
}

// ResultOutput is the retrieval result. While the submission is still
// being judged, Snapshot and RealtimeURL describe progress instead of
// State and CaseResults.
type ResultOutput struct {
	SubmissionID string
	Checked      bool
	State        *model.SubmissionState
	CaseResults  []model.TestCaseResult
	Snapshot     *model.StatusSnapshot
	RealtimeURL  string
}

// NewSubmitService creates a new submit service.
func NewSubmitService(cfg Config) (*SubmitService, error) {
	if cfg.SubmissionRepo == nil {
		return nil, fmt.Errorf("submission repository is required")
	}
	if cfg.Results == nil {
		return nil, fmt.Errorf("result repository is required")
	}
	if cfg.Judge == nil {
		return nil, fmt.Errorf("judge service is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.SourceBucket == "" {
		return nil, fmt.Errorf("source bucket is required")
	}
	if cfg.SourceKeyPrefix == "" {
		cfg.SourceKeyPrefix = defaultSourcePrefix
	}
	if cfg.MaxCodeBytes <= 0 {
		cfg.MaxCodeBytes = defaultMaxCodeBytes
	}
	if cfg.RealtimePath == "" {
		cfg.RealtimePath = "/api/v1/submissions/%s/live"
	}
	languages := make(map[string]struct{}, len(cfg.Languages))
	for _, lang := range cfg.Languages {
		languages[strings.ToLower(strings.TrimSpace(lang))] = struct{}{}
	}
	return &SubmitService{
		submissionRepo:  cfg.SubmissionRepo,
		results:         cfg.Results,
		statusRepo:      cfg.StatusRepo,
		judge:           cfg.Judge,
		storage:         cfg.Storage,
		cache:           cfg.Cache,
		contests:        cfg.Contests,
		sourceBucket:    cfg.SourceBucket,
		sourceKeyPrefix: cfg.SourceKeyPrefix,
		languages:       languages,
		maxCodeBytes:    cfg.MaxCodeBytes,
		idempotencyTTL:  cfg.IdempotencyTTL,
		rateLimit:       cfg.RateLimit,
		timeouts:        cfg.Timeouts,
		realtimePath:    cfg.RealtimePath,
	}, nil
}

// Submit validates and records the submission, then hands it to the
// judging pool. Sync mode blocks until the run finishes.
func (s *SubmitService) Submit(ctx context.Context, input SubmitInput) (SubmitOutput, error) {
	if err := s.validateInput(input); err != nil {
		return SubmitOutput{}, err
	}
	if err := s.checkRateLimit(ctx, input.UserID); err != nil {
		return SubmitOutput{}, err
	}
	if input.CompetitionID != "" && s.contests != nil {
		if _, err := s.contests.CheckParticipant(ctx, input.CompetitionID, input.UserID); err != nil {
			return SubmitOutput{}, err
		}
	}

	acquired, existingID, err := s.acquireIdempotency(ctx, input.IdempotencyKey)
	if err != nil {
		return SubmitOutput{}, err
	}
	if !acquired && existingID != "" {
		return SubmitOutput{
			SubmissionID: existingID,
			RealtimeURL:  s.realtimeURL(existingID),
		}, nil
	}

	submissionID := uuid.NewString()
	sourceKey := s.buildSourceKey(submissionID)

	if err := s.uploadSource(ctx, sourceKey, input.SourceCode); err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey, acquired)
		return SubmitOutput{}, err
	}

	submission := &repository.Submission{
		SubmissionID:  submissionID,
		ProblemID:     input.ProblemID,
		Edition:       input.Edition,
		UserID:        input.UserID,
		CompetitionID: input.CompetitionID,
		Language:      strings.ToLower(strings.TrimSpace(input.Language)),
		SourceCode:    input.SourceCode,
		SourceKey:     sourceKey,
		SourceHash:    hashSource(input.SourceCode),
		Scored:        input.Scored,
	}
	if err := s.createSubmission(ctx, submission); err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey, acquired)
		return SubmitOutput{}, err
	}

	job := model.JudgeJob{
		SubmissionID: submissionID,
		UserID:       input.UserID,
		ProblemID:    input.ProblemID,
		Edition:      input.Edition,
		SourceCode:   input.SourceCode,
		Language:     submission.Language,
		IsScored:     input.Scored,
	}
	if input.CheckerSource != "" {
		job.CustomChecker = &model.CustomCheckerSpec{
			Language: input.CheckerLanguage,
			Source:   input.CheckerSource,
		}
	}

	handle, err := s.judge.EnqueueJudge(ctx, job)
	if err != nil {
		s.releaseIdempotency(ctx, input.IdempotencyKey, acquired)
		return SubmitOutput{}, err
	}
	s.finalizeIdempotency(ctx, input.IdempotencyKey, submissionID, acquired)

	if input.Mode != ModeSync {
		return SubmitOutput{
			SubmissionID: submissionID,
			RealtimeURL:  s.realtimeURL(submissionID),
		}, nil
	}

	if err := handle.Wait(ctx); err != nil {
		return SubmitOutput{SubmissionID: submissionID}, err
	}
	state, err := s.results.GetState(ctx, nil, submissionID)
	if err != nil {
		return SubmitOutput{SubmissionID: submissionID}, appErr.Wrapf(err, appErr.DatabaseError, "load submission state failed")
	}
	caseResults, err := s.results.ListCaseResults(ctx, nil, submissionID)
	if err != nil {
		return SubmitOutput{SubmissionID: submissionID}, appErr.Wrapf(err, appErr.DatabaseError, "load case results failed")
	}
	return SubmitOutput{
		SubmissionID: submissionID,
		Finished:     true,
		State:        state,
		CaseResults:  caseResults,
	}, nil
}

// GetResult returns the persisted outcome once the submission is
// checked; until then it returns the progress snapshot and the live
// channel path.
func (s *SubmitService) GetResult(ctx context.Context, submissionID string) (ResultOutput, error) {
	if submissionID == "" {
		return ResultOutput{}, appErr.ValidationError("submission_id", "required")
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()

	if _, err := s.submissionRepo.GetByID(ctxDB.ctx, nil, submissionID); err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return ResultOutput{}, appErr.New(appErr.SubmissionNotFound)
		}
		return ResultOutput{}, appErr.Wrapf(err, appErr.DatabaseError, "get submission failed")
	}

	state, err := s.results.GetState(ctxDB.ctx, nil, submissionID)
	if err != nil && !errors.Is(err, judgeRepo.ErrSubmissionStateNotFound) {
		return ResultOutput{}, appErr.Wrapf(err, appErr.DatabaseError, "load submission state failed")
	}
	if state != nil && state.Checked {
		caseResults, err := s.results.ListCaseResults(ctxDB.ctx, nil, submissionID)
		if err != nil {
			return ResultOutput{}, appErr.Wrapf(err, appErr.DatabaseError, "load case results failed")
		}
		return ResultOutput{
			SubmissionID: submissionID,
			Checked:      true,
			State:        state,
			CaseResults:  caseResults,
		}, nil
	}

	out := ResultOutput{
		SubmissionID: submissionID,
		RealtimeURL:  s.realtimeURL(submissionID),
	}
	if s.statusRepo != nil {
		snapshot, err := s.statusRepo.Get(ctx, submissionID)
		if err == nil {
			out.Snapshot = &snapshot
		} else if appErr.GetCode(err) != appErr.NotFound {
			logger.Warn(ctx, "load status snapshot failed",
				zap.String("submission_id", submissionID),
				zap.Error(err))
		}
	}
	return out, nil
}

// GetSource returns the stored submission record.
func (s *SubmitService) GetSource(ctx context.Context, submissionID string) (*repository.Submission, error) {
	if submissionID == "" {
		return nil, appErr.ValidationError("submission_id", "required")
	}
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	submission, err := s.submissionRepo.GetByID(ctxDB.ctx, nil, submissionID)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			return nil, appErr.New(appErr.SubmissionNotFound)
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "get submission failed")
	}
	return submission, nil
}

func (s *SubmitService) validateInput(input SubmitInput) error {
	if input.ProblemID <= 0 {
		return appErr.ValidationError("problem_id", "required")
	}
	if input.UserID <= 0 {
		return appErr.ValidationError("user_id", "required")
	}
	lang := strings.ToLower(strings.TrimSpace(input.Language))
	if lang == "" {
		return appErr.ValidationError("language", "required")
	}
	if len(s.languages) > 0 {
		if _, ok := s.languages[lang]; !ok {
			return appErr.Newf(appErr.LanguageNotSupported, "language %q is not supported", lang)
		}
	}
	if strings.TrimSpace(input.SourceCode) == "" {
		return appErr.ValidationError("source_code", "required")
	}
	if len(input.SourceCode) > s.maxCodeBytes {
		return appErr.Newf(appErr.CodeTooLarge, "source exceeds %d bytes", s.maxCodeBytes)
	}
	if input.Mode != "" && input.Mode != ModeSync && input.Mode != ModeRealtime {
		return appErr.ValidationError("mode", "must be sync or realtime")
	}
	return nil
}

func (s *SubmitService) acquireIdempotency(ctx context.Context, key string) (bool, string, error) {
	key = strings.TrimSpace(key)
	if key == "" || s.cache == nil {
		return true, "", nil
	}
	cacheKey := idempotencyKeyPrefix + key
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()

	existing, err := s.cache.Get(ctxCache.ctx, cacheKey)
	if err != nil {
		return false, "", appErr.Wrapf(err, appErr.CacheError, "read idempotency key failed")
	}
	if existing != "" && existing != processingMarker {
		return false, existing, nil
	}

	ttl := s.idempotencyTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	ok, err := s.cache.SetNX(ctxCache.ctx, cacheKey, processingMarker, ttl)
	if err != nil {
		return false, "", appErr.Wrapf(err, appErr.CacheError, "reserve idempotency key failed")
	}
	if ok {
		return true, "", nil
	}
	existing, err = s.cache.Get(ctxCache.ctx, cacheKey)
	if err != nil {
		return false, "", appErr.Wrapf(err, appErr.CacheError, "read idempotency key failed")
	}
	if existing != "" && existing != processingMarker {
		return false, existing, nil
	}
	return false, "", appErr.New(appErr.TooManyRequests).WithMessage("request is processing")
}

func (s *SubmitService) finalizeIdempotency(ctx context.Context, key, submissionID string, acquired bool) {
	if !acquired || strings.TrimSpace(key) == "" || s.cache == nil {
		return
	}
	cacheKey := idempotencyKeyPrefix + strings.TrimSpace(key)
	ttl := s.idempotencyTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()
	if err := s.cache.Set(ctxCache.ctx, cacheKey, submissionID, ttl); err != nil {
		logger.Warn(ctx, "update idempotency key failed", zap.Error(err))
	}
}

func (s *SubmitService) releaseIdempotency(ctx context.Context, key string, acquired bool) {
	if !acquired || strings.TrimSpace(key) == "" || s.cache == nil {
		return
	}
	cacheKey := idempotencyKeyPrefix + strings.TrimSpace(key)
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()
	if err := s.cache.Del(ctxCache.ctx, cacheKey); err != nil {
		logger.Warn(ctx, "release idempotency key failed", zap.Error(err))
	}
}

func (s *SubmitService) checkRateLimit(ctx context.Context, userID int64) error {
	if s.cache == nil || s.rateLimit.Window <= 0 || s.rateLimit.UserMax <= 0 {
		return nil
	}
	ctxCache := withTimeout(ctx, s.timeouts.Cache)
	defer ctxCache.cancel()

	key := fmt.Sprintf("%s%d", rateUserKeyPrefix, userID)
	count, err := s.cache.Incr(ctxCache.ctx, key)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
	}
	if count == 1 {
		_ = s.cache.Expire(ctxCache.ctx, key, s.rateLimit.Window)
	}
	if int(count) > s.rateLimit.UserMax {
		return appErr.New(appErr.TooManyRequests).WithMessage("submitting too frequently")
	}
	return nil
}

func (s *SubmitService) uploadSource(ctx context.Context, objectKey, source string) error {
	ctxStorage := withTimeout(ctx, s.timeouts.Storage)
	defer ctxStorage.cancel()
	reader := io.NopCloser(strings.NewReader(source))
	defer func() { _ = reader.Close() }()
	if err := s.storage.PutObject(ctxStorage.ctx, s.sourceBucket, objectKey, reader, int64(len(source)), "text/plain; charset=utf-8"); err != nil {
		return appErr.Wrapf(err, appErr.SubmissionCreateFailed, "upload source failed")
	}
	return nil
}

func (s *SubmitService) createSubmission(ctx context.Context, submission *repository.Submission) error {
	ctxDB := withTimeout(ctx, s.timeouts.DB)
	defer ctxDB.cancel()
	if err := s.submissionRepo.Create(ctxDB.ctx, nil, submission); err != nil {
		return appErr.Wrapf(err, appErr.SubmissionCreateFailed, "create submission failed")
	}
	return nil
}

func (s *SubmitService) buildSourceKey(submissionID string) string {
	return fmt.Sprintf("%s/%s/source.code", s.sourceKeyPrefix, submissionID)
}

func (s *SubmitService) realtimeURL(submissionID string) string {
	return fmt.Sprintf(s.realtimePath, submissionID)
}

func hashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

type timeoutCtx struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func withTimeout(ctx context.Context, timeout time.Duration) timeoutCtx {
	if timeout <= 0 {
		return timeoutCtx{ctx: ctx, cancel: func() {}}
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	return timeoutCtx{ctx: ctxTimeout, cancel: cancel}
}
