// Package gate provides the admission rate gate: per-owner request
// throttling applied before a job row is ever created.
package gate

import (
	"sync"
	"time"

	"github.com/vidsaver/vidsaver/errors"
)

// Gate enforces max submissions per owner per time window using a sliding
// window. Rejected submissions never reach the job store, so the zero-loss
// guarantee applies strictly to accepted work.
type Gate struct {
	maxPerWindow int
	window       time.Duration
	mu           sync.Mutex
	byOwner      map[string][]time.Time
	timeNow      func() time.Time // Injectable for testing
}

// New creates a gate with real time. A typical configuration is 100
// submissions per hour per owner.
func New(maxPerWindow int, window time.Duration) *Gate {
	return NewWithClock(maxPerWindow, window, time.Now)
}

// NewWithClock creates a gate with an injectable clock (for testing)
func NewWithClock(maxPerWindow int, window time.Duration, timeNow func() time.Time) *Gate {
	return &Gate{
		maxPerWindow: maxPerWindow,
		window:       window,
		byOwner:      make(map[string][]time.Time),
		timeNow:      timeNow,
	}
}

// Allow checks whether a submission by owner is admitted under the rate
// limit, recording it if so. Returns an error wrapping errors.ErrRateLimited
// when the limit is exceeded.
func (g *Gate) Allow(owner string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.timeNow()
	g.removeExpired(owner, now)

	calls := g.byOwner[owner]
	if len(calls) >= g.maxPerWindow {
		err := errors.Wrapf(errors.ErrRateLimited,
			"owner %q exceeded %d submissions per %s", owner, g.maxPerWindow, g.window)
		err = errors.WithDetailf(err, "Submissions in window: %d", len(calls))
		err = errors.WithHint(err, "wait for earlier submissions to age out of the window")
		return err
	}

	g.byOwner[owner] = append(calls, now)
	return nil
}

// Stats returns the current window usage for an owner.
func (g *Gate) Stats(owner string) (used int, remaining int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeExpired(owner, g.timeNow())
	used = len(g.byOwner[owner])
	remaining = g.maxPerWindow - used
	if remaining < 0 {
		remaining = 0
	}
	return used, remaining
}

// Reset clears all recorded submissions.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.byOwner = make(map[string][]time.Time)
}

// removeExpired drops timestamps outside the sliding window for one owner.
// Must be called with lock held.
func (g *Gate) removeExpired(owner string, now time.Time) {
	cutoff := now.Add(-g.window)
	calls := g.byOwner[owner]

	expired := 0
	for _, t := range calls {
		if !t.After(cutoff) {
			expired++
		} else {
			break
		}
	}

	if expired == len(calls) {
		delete(g.byOwner, owner) // Keep the map from accumulating idle owners
		return
	}
	if expired > 0 {
		g.byOwner[owner] = calls[expired:]
	}
}
