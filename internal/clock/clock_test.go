package clock

import (
	"testing"
	"time"
)

func TestSystemClockDefaultsToUTC(t *testing.T) {
	c := New(true, nil)
	if c.TimezonePOSIX() != "UTC" {
		t.Fatalf("got %s, want UTC", c.TimezonePOSIX())
	}
}

func TestSystemClockSyncedFlag(t *testing.T) {
	c := New(false, nil)
	if c.Synced() {
		t.Fatalf("expected unsynced")
	}
	c.SetSynced(true)
	if !c.Synced() {
		t.Fatalf("expected synced after SetSynced(true)")
	}
}

func TestSystemClockSetLocation(t *testing.T) {
	c := New(true, nil)
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	c.SetLocation(loc)
	if c.TimezonePOSIX() != "America/New_York" {
		t.Fatalf("got %s", c.TimezonePOSIX())
	}
	if c.Now().Location().String() != "America/New_York" {
		t.Fatalf("Now() did not pick up new location")
	}
}

func TestSystemClockNowEpochMonotonic(t *testing.T) {
	c := New(true, nil)
	a := c.NowEpoch()
	time.Sleep(2 * time.Millisecond)
	b := c.NowEpoch()
	if b < a {
		t.Fatalf("epoch went backwards: %d -> %d", a, b)
	}
}
