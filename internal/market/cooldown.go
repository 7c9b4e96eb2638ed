package market

import (
	"sync"
	"time"
)

// Tracker records each actor's last barter so repeat trades inside the
// configured window are rejected with the remaining time, never silently
// ignored. It is owned by the engine and cleared on reload, replacing the
// process-wide map the feature grew out of.
type Tracker struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewTracker(window time.Duration, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		window: window,
		now:    now,
		last:   map[string]time.Time{},
	}
}

// Remaining reports how long the actor must still wait, or zero.
func (t *Tracker) Remaining(actorID string) time.Duration {
	if t.window <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.last[actorID]
	if !ok {
		return 0
	}
	rem := t.window - t.now().Sub(at)
	if rem < 0 {
		return 0
	}
	return rem
}

func (t *Tracker) Mark(actorID string) {
	if t.window <= 0 {
		return
	}
	t.mu.Lock()
	t.last[actorID] = t.now()
	t.mu.Unlock()
}

// Sweep drops entries older than the given age. Runs from a periodic task,
// independent of in-flight trades.
func (t *Tracker) Sweep(olderThan time.Duration) {
	cutoff := t.now().Add(-olderThan)
	t.mu.Lock()
	for id, at := range t.last {
		if at.Before(cutoff) {
			delete(t.last, id)
		}
	}
	t.mu.Unlock()
}

func (t *Tracker) Clear() {
	t.mu.Lock()
	t.last = map[string]time.Time{}
	t.mu.Unlock()
}
