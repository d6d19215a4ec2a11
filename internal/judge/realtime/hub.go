package realtime

import "sync"

// Hub owns the submission→session map. It is constructed at process
// start and injected; there is no package-level instance.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*Session)}
}

// Create registers a fresh session for a submission, replacing any
// stale one left behind by a previous run.
func (h *Hub) Create(submissionID string) *Session {
	s := NewSession()
	h.mu.Lock()
	h.sessions[submissionID] = s
	h.mu.Unlock()
	return s
}

// Get returns the session for a submission, if one is alive.
func (h *Hub) Get(submissionID string) (*Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[submissionID]
	return s, ok
}

// Reap discards the session once it is finished and no subscriber is
// attached. Both the orchestrator (after finalize) and the transport
// (after detach) call this; whoever observes the terminal state last
// wins.
func (h *Hub) Reap(submissionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[submissionID]
	if !ok {
		return
	}
	if s.Finished() && !s.Attached() {
		delete(h.sessions, submissionID)
	}
}

// Len returns the number of live sessions, for diagnostics.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
