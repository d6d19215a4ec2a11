package admission

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestTryAcquireSingleFlight(t *testing.T) {
	t.Parallel()

	gate := NewGate()
	if !gate.TryAcquire(1) {
		t.Fatal("first acquire should succeed")
	}
	if gate.TryAcquire(1) {
		t.Fatal("second acquire for held user should fail")
	}
	if !gate.TryAcquire(2) {
		t.Fatal("acquire for a different user should succeed")
	}

	gate.Release(1)
	if !gate.TryAcquire(1) {
		t.Fatal("acquire after release should succeed")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	gate := NewGate()
	gate.Release(7)
	if !gate.TryAcquire(7) {
		t.Fatal("acquire after spurious release should succeed")
	}
	gate.Release(7)
	gate.Release(7)
	if gate.Held(7) {
		t.Fatal("user should not be held after release")
	}
}

func TestConcurrentAcquireSameUser(t *testing.T) {
	t.Parallel()

	gate := NewGate()
	const attempts = 100

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if gate.TryAcquire(42) {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("expected exactly one winner, got %d", got)
	}
	if gate.Active() != 1 {
		t.Fatalf("expected 1 active hold, got %d", gate.Active())
	}
}

func TestActiveCount(t *testing.T) {
	t.Parallel()

	gate := NewGate()
	for id := int64(1); id <= 5; id++ {
		if !gate.TryAcquire(id) {
			t.Fatalf("acquire user %d failed", id)
		}
	}
	if gate.Active() != 5 {
		t.Fatalf("Active() = %d, want 5", gate.Active())
	}
	gate.Release(3)
	if gate.Active() != 4 {
		t.Fatalf("Active() after release = %d, want 4", gate.Active())
	}
}
