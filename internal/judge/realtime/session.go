// Package realtime implements the per-submission live-result channel:
// an append-only message log with single-subscriber attachment and
// replay-from-offset for reconnects.
package realtime

import (
	"context"
	"sync"
)

// Session is the message log for one in-progress judged submission.
// Single writer (the judging orchestrator), at most one attached
// reader. The wake channel is 1-buffered so Append never blocks and a
// waiting subscriber never misses a signal.
type Session struct {
	mu       sync.Mutex
	messages []string
	attached bool
	finished bool

	wake chan struct{}
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{wake: make(chan struct{}, 1)}
}

// Append adds a message to the log and wakes a blocked subscriber.
func (s *Session) Append(message string) {
	s.mu.Lock()
	s.messages = append(s.messages, message)
	s.mu.Unlock()
	s.signal()
}

// Attach claims the single subscriber slot. It returns false when a
// subscriber is already attached; the caller must report a conflict
// rather than block.
func (s *Session) Attach() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return false
	}
	s.attached = true
	return true
}

// Detach clears the subscriber slot so a later reconnect can drain
// from wherever it left off.
func (s *Session) Detach() {
	s.mu.Lock()
	s.attached = false
	s.mu.Unlock()
}

// Attached reports whether a subscriber currently holds the slot.
func (s *Session) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

// Drain returns all messages appended after sinceIndex and the new
// offset. Drain(0) returns the full backlog.
func (s *Session) Drain(sinceIndex int) ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sinceIndex < 0 {
		sinceIndex = 0
	}
	if sinceIndex >= len(s.messages) {
		return nil, len(s.messages)
	}
	out := make([]string, len(s.messages)-sinceIndex)
	copy(out, s.messages[sinceIndex:])
	return out, len(s.messages)
}

// Finish marks the session complete and wakes any blocked subscriber
// so it can perform a final drain.
func (s *Session) Finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.signal()
}

// Finished reports whether judging has completed.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Wait blocks until a new message may be available, the session
// finishes, or ctx is done. Callers re-drain after Wait returns nil.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.wake:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
