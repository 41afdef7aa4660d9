package ratelimit

import (
	"sync"
	"time"
)

// Guard is a sliding-window admission filter keyed by client identity.
// Every admission check prunes timestamps older than the window before
// counting, so a burst is forgiven exactly window after it happened.
// State is process-local; a restart resets every window.
type Guard struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	max     int
	window  time.Duration
	now     func() time.Time
}

// New creates a guard that admits max requests per window for each key.
// It starts a background goroutine that drops idle keys every minute.
func New(max int, window time.Duration) *Guard {
	g := &Guard{
		windows: make(map[string][]time.Time),
		max:     max,
		window:  window,
		now:     time.Now,
	}
	go func() {
		for {
			time.Sleep(time.Minute)
			g.sweep()
		}
	}()
	return g
}

// Allow reports whether a request under key is admitted. Prune, check
// and record happen as one atomic unit so two concurrent requests can
// never both claim the last remaining slot.
func (g *Guard) Allow(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.window)

	stamps := g.windows[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= g.max {
		// Rejected requests are not recorded.
		g.windows[key] = kept
		return false
	}

	g.windows[key] = append(kept, now)
	return true
}

// sweep removes keys whose every timestamp has aged out of the window.
func (g *Guard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	cutoff := g.now().Add(-g.window)
	for key, stamps := range g.windows {
		idle := true
		for _, ts := range stamps {
			if ts.After(cutoff) {
				idle = false
				break
			}
		}
		if idle {
			delete(g.windows, key)
		}
	}
}
