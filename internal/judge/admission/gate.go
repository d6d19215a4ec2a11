// Package admission implements the per-user single-flight gate that
// prevents a user from having two judged or debugged jobs in flight.
package admission

import "sync"

// Gate tracks which users currently hold a judging slot. Acquire and
// release happen under one mutex so concurrent requests from the same
// user cannot both observe "not held".
type Gate struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

// NewGate creates an empty gate. Construct once at process start and
// inject it; there is no package-level instance.
func NewGate() *Gate {
	return &Gate{held: make(map[int64]struct{})}
}

// TryAcquire atomically claims the user's slot. It returns false
// without blocking when the user already holds one.
func (g *Gate) TryAcquire(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.held[userID]; ok {
		return false
	}
	g.held[userID] = struct{}{}
	return true
}

// Release clears the user's hold. Releasing an unheld user is a no-op.
func (g *Gate) Release(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.held, userID)
}

// Held reports whether the user currently holds a slot.
func (g *Gate) Held(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.held[userID]
	return ok
}

// Active returns the number of users currently being judged. Exposed
// through the diagnostics endpoint.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}
