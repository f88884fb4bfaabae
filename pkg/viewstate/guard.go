package viewstate

import (
	"sync"
	"time"
)

// AnimationGuard marks the window during which a programmatic camera move is
// in flight. Camera-changed reports from the client are ignored while it is
// held so a fly-to is not mistaken for a user pan.
//
// Each Acquire returns a token. Only the token of the latest acquisition
// releases the guard; a completion report for a superseded move is ignored.
// The guard also expires on its own after the requested duration, so a client
// that never reports completion cannot hold it forever.
type AnimationGuard struct {
	mu    sync.Mutex
	token uint64
	held  bool
	until time.Time
	now   func() time.Time
}

// NewAnimationGuard returns a released guard.
func NewAnimationGuard() *AnimationGuard {
	return &AnimationGuard{now: time.Now}
}

// Acquire holds the guard for at most d. Tokens start at 1.
func (g *AnimationGuard) Acquire(d time.Duration) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.token++
	g.held = true
	g.until = g.now().Add(d)
	return g.token
}

// Release drops the guard if token belongs to the current acquisition and
// reports whether it did.
func (g *AnimationGuard) Release(token uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if token == 0 || token != g.token || !g.held {
		return false
	}
	g.held = false
	return true
}

// Token is the latest acquisition's token, or 0 while released.
func (g *AnimationGuard) Token() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.activeLocked() {
		return 0
	}
	return g.token
}

// Active reports whether a programmatic move is in flight.
func (g *AnimationGuard) Active() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.activeLocked()
}

func (g *AnimationGuard) activeLocked() bool {
	if g.held && !g.now().Before(g.until) {
		g.held = false
	}
	return g.held
}
