package update

import (
	"golang.org/x/sync/semaphore"
)

// Guard admits one update session or migration at a time. A second caller is
// rejected, not queued.
type Guard struct {
	sem *semaphore.Weighted
}

// NewGuard returns an unheld guard.
func NewGuard() *Guard {
	return &Guard{sem: semaphore.NewWeighted(1)}
}

// TryAcquire takes the guard if it is free. The returned func releases it.
func (g *Guard) TryAcquire() (release func(), ok bool) {
	if !g.sem.TryAcquire(1) {
		return nil, false
	}
	return func() { g.sem.Release(1) }, true
}
