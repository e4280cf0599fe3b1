package claim

import "sync"

// Guard is the process-wide single-flight flag for batch runs. TryAcquire
// is atomic, so there is no race between check and acquire. It has no
// cross-process reach; claimd runs one worker per deployment.
type Guard struct {
	mu sync.Mutex
}

// TryAcquire attempts to claim the guard without blocking. Returns false
// if a run is already in flight.
func (g *Guard) TryAcquire() bool {
	return g.mu.TryLock()
}

// Release frees the guard. Must be called exactly once per successful
// TryAcquire, on every exit path.
func (g *Guard) Release() {
	g.mu.Unlock()
}
