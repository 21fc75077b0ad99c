// Package lifecycle ties timers and subscriptions to the lifetime of an
// owning component so that nothing fires against it after teardown.
package lifecycle

import (
	"sync"
	"sync/atomic"
	"time"
)

// Releaser is anything holding a resource that must be given back exactly
// once, such as an event subscription.
type Releaser interface {
	Unsubscribe()
}

// Guard owns timers and subscriptions for one component. After Close, pending
// timers are stopped, tracked subscriptions are released, and any callback
// that was already running or racing the stop becomes a no-op.
type Guard struct {
	alive atomic.Bool

	mu        sync.Mutex
	timers    map[*time.Timer]struct{}
	releasers []Releaser
}

// New returns a live guard.
func New() *Guard {
	g := &Guard{timers: make(map[*time.Timer]struct{})}
	g.alive.Store(true)
	return g
}

// Alive reports whether Close has not yet been called.
func (g *Guard) Alive() bool {
	return g.alive.Load()
}

// AfterFunc runs fn after d unless the guard is closed first. It returns
// false if the guard is already closed and nothing was scheduled.
func (g *Guard) AfterFunc(d time.Duration, fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.alive.Load() {
		return false
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		g.mu.Lock()
		delete(g.timers, t)
		g.mu.Unlock()
		if !g.alive.Load() {
			return
		}
		fn()
	})
	g.timers[t] = struct{}{}
	return true
}

// Track registers r to be released on Close. If the guard is already closed,
// r is released immediately.
func (g *Guard) Track(r Releaser) {
	g.mu.Lock()
	if g.alive.Load() {
		g.releasers = append(g.releasers, r)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	r.Unsubscribe()
}

// Pending returns the number of timers that have not fired or been stopped.
func (g *Guard) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.timers)
}

// Close stops all timers and releases all subscriptions. Calling it more
// than once has no further effect.
func (g *Guard) Close() {
	g.mu.Lock()
	if !g.alive.Swap(false) {
		g.mu.Unlock()
		return
	}
	for t := range g.timers {
		t.Stop()
	}
	g.timers = make(map[*time.Timer]struct{})
	releasers := g.releasers
	g.releasers = nil
	g.mu.Unlock()

	for _, r := range releasers {
		r.Unsubscribe()
	}
}
