package market_test

import (
	"testing"
	"time"

	"chestmarket.gg/internal/market"
)

func TestTrackerRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tr := market.NewTracker(3*time.Second, clock)

	if tr.Remaining("alice") != 0 {
		t.Fatalf("fresh actor must have no cooldown")
	}
	tr.Mark("alice")
	if got := tr.Remaining("alice"); got != 3*time.Second {
		t.Fatalf("remaining = %v, want 3s", got)
	}

	now = now.Add(2 * time.Second)
	if got := tr.Remaining("alice"); got != time.Second {
		t.Fatalf("remaining = %v, want 1s", got)
	}
	if tr.Remaining("carol") != 0 {
		t.Fatalf("other actors unaffected")
	}

	now = now.Add(2 * time.Second)
	if tr.Remaining("alice") != 0 {
		t.Fatalf("cooldown must expire")
	}
}

func TestTrackerZeroWindowDisabled(t *testing.T) {
	tr := market.NewTracker(0, nil)
	tr.Mark("alice")
	if tr.Remaining("alice") != 0 {
		t.Fatalf("zero window must disable cooldowns")
	}
}

func TestTrackerSweepAndClear(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tr := market.NewTracker(time.Minute, clock)

	tr.Mark("old")
	now = now.Add(2 * time.Hour)
	tr.Mark("recent")

	tr.Sweep(time.Hour)
	if tr.Remaining("recent") == 0 {
		t.Fatalf("sweep dropped a live entry")
	}

	tr.Clear()
	if tr.Remaining("recent") != 0 {
		t.Fatalf("clear must drop all entries")
	}
}
