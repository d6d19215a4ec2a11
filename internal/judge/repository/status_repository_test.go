package repository

import (
	"context"
	"testing"
	"time"

	"efrog/internal/common/cache"
	"efrog/internal/judge/model"
	appErr "efrog/pkg/errors"

	"github.com/alicebob/miniredis/v2"
)

func newTestStatusRepository(t *testing.T) *StatusRepository {
	t.Helper()
	srv := miniredis.RunT(t)
	cacheClient, err := cache.NewRedisCache(srv.Addr())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	t.Cleanup(func() { _ = cacheClient.Close() })
	return NewStatusRepository(cacheClient, time.Minute)
}

func TestStatusSaveAndGet(t *testing.T) {
	t.Parallel()

	repo := newTestStatusRepository(t)
	ctx := context.Background()

	snapshot := model.StatusSnapshot{
		SubmissionID: "sub-1",
		Phase:        model.PhaseRunning,
		TotalCases:   5,
		DoneCases:    2,
	}
	if err := repo.Save(ctx, snapshot); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Get(ctx, "sub-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Phase != model.PhaseRunning || got.DoneCases != 2 || got.TotalCases != 5 {
		t.Fatalf("Get = %+v", got)
	}
	if got.UpdatedAt == 0 {
		t.Fatal("Save should stamp UpdatedAt")
	}
}

func TestStatusGetMissing(t *testing.T) {
	t.Parallel()

	repo := newTestStatusRepository(t)
	_, err := repo.Get(context.Background(), "nope")
	if appErr.GetCode(err) != appErr.NotFound {
		t.Fatalf("Get missing = %v, want NotFound", err)
	}
}

func TestStatusSaveValidation(t *testing.T) {
	t.Parallel()

	repo := newTestStatusRepository(t)
	err := repo.Save(context.Background(), model.StatusSnapshot{})
	if err == nil {
		t.Fatal("Save without submission id should fail")
	}
}
