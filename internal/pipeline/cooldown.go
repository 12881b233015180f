package pipeline

import (
	"sync"
	"time"
)

type cooldownState struct {
	lastFiredAt   time.Time
	cooldownUntil time.Time
}

// Gate rate-limits triggers per action id. The first trigger fires
// immediately; a repeat inside the window is suppressed and arms a cooldown
// measured from the repeat, so rapid re-matches keep the action quiet until
// a full window of silence has passed.
type Gate struct {
	window time.Duration

	mu    sync.Mutex
	state map[string]*cooldownState
}

// NewGate creates a gate with the given per-action window. A window of zero
// disables suppression.
func NewGate(window time.Duration) *Gate {
	return &Gate{window: window, state: make(map[string]*cooldownState)}
}

// Allow reports whether a trigger for id may fire at now, updating the
// per-id state either way.
func (g *Gate) Allow(id string, now time.Time) bool {
	if g.window <= 0 {
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.state[id]
	if !ok {
		g.state[id] = &cooldownState{lastFiredAt: now}
		return true
	}

	if !st.cooldownUntil.IsZero() {
		if now.Before(st.cooldownUntil) {
			return false
		}
		st.lastFiredAt = now
		st.cooldownUntil = time.Time{}
		return true
	}

	if now.Sub(st.lastFiredAt) < g.window {
		st.cooldownUntil = now.Add(g.window)
		return false
	}

	st.lastFiredAt = now
	return true
}

// Remaining reports how long until id may fire again, zero when it can fire
// now. Used for operator-facing status.
func (g *Gate) Remaining(id string, now time.Time) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.state[id]
	if !ok {
		return 0
	}
	if !st.cooldownUntil.IsZero() {
		if d := st.cooldownUntil.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	if d := g.window - now.Sub(st.lastFiredAt); d > 0 {
		return d
	}
	return 0
}
