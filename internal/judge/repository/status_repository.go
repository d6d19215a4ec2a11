package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"efrog/internal/common/cache"
	"efrog/internal/judge/model"
	appErr "efrog/pkg/errors"
)

const statusKeyPrefix = "judge:status:"

// StatusRepository keeps the live progress snapshot for in-flight
// submissions in redis. Entries are TTL'd; once a submission is
// checked the SQL row is authoritative.
type StatusRepository struct {
	cache cache.Cache
	TTL   time.Duration
}

// NewStatusRepository creates a new repository.
func NewStatusRepository(cacheClient cache.Cache, ttl time.Duration) *StatusRepository {
	return &StatusRepository{cache: cacheClient, TTL: ttl}
}

// Get returns the snapshot for a submission.
func (r *StatusRepository) Get(ctx context.Context, submissionID string) (model.StatusSnapshot, error) {
	if submissionID == "" {
		return model.StatusSnapshot{}, appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return model.StatusSnapshot{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, statusKeyPrefix+submissionID)
	if err != nil || val == "" {
		return model.StatusSnapshot{}, appErr.New(appErr.NotFound).WithMessage("submission status not found")
	}
	var snapshot model.StatusSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return model.StatusSnapshot{}, appErr.Wrapf(err, appErr.CacheError, "decode status failed")
	}
	return snapshot, nil
}

// Save persists the snapshot.
func (r *StatusRepository) Save(ctx context.Context, snapshot model.StatusSnapshot) error {
	if snapshot.SubmissionID == "" {
		return appErr.ValidationError("submission_id", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	if snapshot.UpdatedAt == 0 {
		snapshot.UpdatedAt = time.Now().Unix()
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal status failed: %w", err)
	}
	if err := r.cache.Set(ctx, statusKeyPrefix+snapshot.SubmissionID, string(data), r.TTL); err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "store status failed")
	}
	return nil
}
