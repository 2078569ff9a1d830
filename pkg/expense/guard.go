package expense

import "sync"

// Guard is the single-flight state of the composer autofill: at most one
// attempt runs per document, and a completed attempt is never repeated until
// a route change resets the guard.
type Guard struct {
	mu      sync.Mutex
	running bool
	done    bool
}

// TryStart claims the guard. It reports false when an attempt is already
// running or has already completed.
func (g *Guard) TryStart() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running || g.done {
		return false
	}
	g.running = true
	return true
}

// MarkDone records a completed attempt and releases the running claim.
func (g *Guard) MarkDone() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	g.done = true
}

// Reset clears both flags. Route transitions into the composer call this so
// the new document lifetime gets a fresh attempt; a timed-out attempt calls
// it too, releasing the claim without marking completion.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	g.done = false
}

// Done reports whether a completed attempt is on record.
func (g *Guard) Done() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done
}
