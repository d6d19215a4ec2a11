package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	appErr "efrog/pkg/errors"
)

func TestSubmitAndWait(t *testing.T) {
	t.Parallel()

	p := New("test", Config{Workers: 2, QueueCap: 8})
	defer shutdown(t, p)

	h, err := p.Submit(func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestJobErrorPropagates(t *testing.T) {
	t.Parallel()

	p := New("test", Config{Workers: 1, QueueCap: 8})
	defer shutdown(t, p)

	want := errors.New("boom")
	h, err := p.Submit(func(ctx context.Context) error { return want })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if got := h.Wait(context.Background()); !errors.Is(got, want) {
		t.Fatalf("Wait = %v, want %v", got, want)
	}
}

func TestQueueCapRejects(t *testing.T) {
	t.Parallel()

	p := New("test", Config{Workers: 1, QueueCap: 1})
	defer shutdown(t, p)

	block := make(chan struct{})
	var handles []*Handle

	// First job occupies the worker, second fills the queue.
	for i := 0; i < 2; i++ {
		h, err := p.Submit(func(ctx context.Context) error {
			<-block
			return nil
		})
		if err != nil {
			// The worker may have already drained the queue slot;
			// only the occupied-worker job is guaranteed to land.
			if i == 0 {
				t.Fatalf("Submit %d: %v", i, err)
			}
		} else {
			handles = append(handles, h)
		}
	}

	// Keep submitting until the cap rejects.
	deadline := time.After(2 * time.Second)
	for {
		h, err := p.Submit(func(ctx context.Context) error {
			<-block
			return nil
		})
		if err != nil {
			if appErr.GetCode(err) != appErr.JudgeQueueFull {
				t.Fatalf("unexpected error code: %v", err)
			}
			break
		}
		handles = append(handles, h)
		select {
		case <-deadline:
			t.Fatal("queue cap never rejected")
		default:
		}
	}

	close(block)
	for _, h := range handles {
		if err := h.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
}

func TestWaitRespectsContext(t *testing.T) {
	t.Parallel()

	p := New("test", Config{Workers: 1, QueueCap: 8})
	defer shutdown(t, p)

	block := make(chan struct{})
	h, err := p.Submit(func(ctx context.Context) error {
		<-block
		return nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}
	close(block)
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
}

func TestJobsRunConcurrently(t *testing.T) {
	t.Parallel()

	const workers = 4
	p := New("test", Config{Workers: workers, QueueCap: 16})
	defer shutdown(t, p)

	var running atomic.Int32
	var peak atomic.Int32
	var wg sync.WaitGroup
	release := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		_, err := p.Submit(func(ctx context.Context) error {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return nil
		})
		if err != nil {
			t.Fatalf("Submit %d: %v", i, err)
		}
	}

	// Give the workers a moment to pick everything up.
	waitFor(t, func() bool { return running.Load() == workers })
	close(release)
	wg.Wait()

	if peak.Load() != workers {
		t.Fatalf("peak concurrency = %d, want %d", peak.Load(), workers)
	}
}

func TestPanicBecomesError(t *testing.T) {
	t.Parallel()

	p := New("test", Config{Workers: 1, QueueCap: 8})
	defer shutdown(t, p)

	h, err := p.Submit(func(ctx context.Context) error { panic("kaboom") })
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	got := h.Wait(context.Background())
	if appErr.GetCode(got) != appErr.JudgeSystemError {
		t.Fatalf("Wait = %v, want JudgeSystemError", got)
	}

	// The worker must survive the panic.
	h2, err := p.Submit(func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Submit after panic: %v", err)
	}
	if err := h2.Wait(context.Background()); err != nil {
		t.Fatalf("Wait after panic: %v", err)
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	t.Parallel()

	p := New("test", Config{Workers: 1, QueueCap: 8})
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	_, err := p.Submit(func(ctx context.Context) error { return nil })
	if appErr.GetCode(err) != appErr.ServiceUnavailable {
		t.Fatalf("Submit after shutdown = %v, want ServiceUnavailable", err)
	}
}

func shutdown(t *testing.T, p *Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never met")
}
