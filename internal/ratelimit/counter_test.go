package ratelimit

import (
	"testing"
	"time"
)

func TestCounterHourBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return now }
	c := New(cfg)

	for i := 0; i < 30; i++ {
		if got := c.Admit(); got != Allow {
			t.Fatalf("admission %d: got %v, want Allow", i+1, got)
		}
	}
	if got := c.Admit(); got != Deny {
		t.Fatalf("31st admission: got %v, want Deny", got)
	}

	now = now.Add(time.Hour + time.Minute)
	if got := c.Admit(); got != Allow {
		t.Fatalf("post-rollover admission: got %v, want Allow", got)
	}
}

func TestCounterDayLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{HourLimit: 1000, DayLimit: 2, Now: func() time.Time { return now }}
	c := New(cfg)

	if got := c.Admit(); got != Allow {
		t.Fatalf("1st: got %v", got)
	}
	if got := c.Admit(); got != Allow {
		t.Fatalf("2nd: got %v", got)
	}
	if got := c.Admit(); got != Deny {
		t.Fatalf("3rd: got %v, want Deny", got)
	}
}

func TestCounterUnsyncedClockIsConservative(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{HourLimit: 30, DayLimit: 200, Now: func() time.Time { return now }}
	c := New(cfg)
	c.SetClockSynced(false)

	allowed := 0
	for i := 0; i < 30; i++ {
		if c.Admit() == Allow {
			allowed++
		}
	}
	if allowed != 30/4 {
		t.Fatalf("got %d allowed, want %d (1/4 of cap)", allowed, 30/4)
	}
}

func TestCounterDayBoundaryHonoursConfiguredLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 23:30 local on Dec 31 is still Jan 1 UTC; a UTC-anchored day window
	// would already consider this a new day and reset the count.
	now := time.Date(2025, 12, 31, 23, 30, 0, 0, loc)
	cfg := Config{HourLimit: 1000, DayLimit: 2, Loc: loc, Now: func() time.Time { return now }}
	c := New(cfg)

	if got := c.Admit(); got != Allow {
		t.Fatalf("1st: got %v", got)
	}
	if got := c.Admit(); got != Allow {
		t.Fatalf("2nd: got %v", got)
	}

	// Still the same local calendar day 20 minutes later (23:50 local):
	// the window must not roll over before local midnight.
	now = now.Add(20 * time.Minute)
	if got := c.Admit(); got != Deny {
		t.Fatalf("3rd within the same local day: got %v, want Deny", got)
	}

	// Crossing local midnight rolls the day window forward.
	now = time.Date(2026, 1, 1, 0, 5, 0, 0, loc)
	if got := c.Admit(); got != Allow {
		t.Fatalf("1st admission of the new local day: got %v, want Allow", got)
	}
}

func TestCounterSnapshot(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{HourLimit: 30, DayLimit: 200, Now: func() time.Time { return now }}
	c := New(cfg)
	c.Admit()
	c.Admit()
	hour, day := c.Snapshot()
	if hour != 2 || day != 2 {
		t.Fatalf("got hour=%d day=%d, want 2,2", hour, day)
	}
}
