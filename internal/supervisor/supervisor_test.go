package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/joaolucaswork/esp32-concierge/internal/config"
	"github.com/joaolucaswork/esp32-concierge/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBootStaysNormalUnderThreshold(t *testing.T) {
	s := newTestStore(t)
	sv := New(Config{Store: s})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		mode, err := sv.Boot(ctx)
		if err != nil {
			t.Fatalf("boot: %v", err)
		}
		if mode != ModeNormal {
			t.Fatalf("boot %d: got %s, want normal", i, mode)
		}
	}
}

func TestBootEntersSafeModeAtThreshold(t *testing.T) {
	s := newTestStore(t)
	sv := New(Config{Store: s})
	ctx := context.Background()

	var mode Mode
	var err error
	for i := 0; i < 3; i++ {
		mode, err = sv.Boot(ctx)
		if err != nil {
			t.Fatalf("boot: %v", err)
		}
	}
	if mode != ModeSafe {
		t.Fatalf("got %s, want safe after 3 consecutive failed boots", mode)
	}
	if sv.Mode() != ModeSafe {
		t.Fatalf("Mode() = %s, want safe", sv.Mode())
	}
}

func TestArmSuccessTimerResetsCounter(t *testing.T) {
	s := newTestStore(t)
	sv := New(Config{Store: s, SuccessDelay: 10 * time.Millisecond})
	ctx := context.Background()

	sv.Boot(ctx)
	sv.Boot(ctx)
	n, _ := config.BootCount(ctx, s)
	if n != 2 {
		t.Fatalf("got %d, want 2", n)
	}

	sv.ArmSuccessTimer(ctx)
	time.Sleep(40 * time.Millisecond)

	n, err := config.BootCount(ctx, s)
	if err != nil {
		t.Fatalf("boot count: %v", err)
	}
	if n != 0 {
		t.Fatalf("got %d, want counter reset to 0", n)
	}
}

func TestArmSuccessTimerCancelledByNewBoot(t *testing.T) {
	s := newTestStore(t)
	sv := New(Config{Store: s, SuccessDelay: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sv.Boot(ctx)
	sv.ArmSuccessTimer(ctx)
	cancel() // simulate interrupted operation before the delay elapses

	time.Sleep(40 * time.Millisecond)
	n, _ := config.BootCount(context.Background(), s)
	if n != 1 {
		t.Fatalf("got %d, want counter to survive an interrupted arm", n)
	}
}

func TestEnterSafeModeForced(t *testing.T) {
	s := newTestStore(t)
	sv := New(Config{Store: s})
	sv.EnterSafeMode("store corrupted")
	if sv.Mode() != ModeSafe {
		t.Fatalf("got %s, want safe", sv.Mode())
	}
}

func TestRunChecksSortedAndReportsFailures(t *testing.T) {
	checks := []Check{
		{Name: "zzz_last", Run: func(ctx context.Context) error { return nil }},
		{Name: "aaa_first", Run: func(ctx context.Context) error { return context.DeadlineExceeded }},
	}
	results := RunChecks(context.Background(), checks, time.Second)
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Name != "aaa_first" || results[0].OK {
		t.Fatalf("expected sorted-first failing check, got %+v", results[0])
	}
	if results[1].Name != "zzz_last" || !results[1].OK {
		t.Fatalf("expected sorted-last passing check, got %+v", results[1])
	}
	if AllOK(results) {
		t.Fatalf("expected AllOK to be false")
	}
}

func TestStoreCheckPasses(t *testing.T) {
	s := newTestStore(t)
	results := RunChecks(context.Background(), []Check{StoreCheck(s)}, time.Second)
	if !AllOK(results) {
		t.Fatalf("expected store check to pass: %+v", results)
	}
}

func TestLLMConfigCheckFailsWhenUnset(t *testing.T) {
	s := newTestStore(t)
	results := RunChecks(context.Background(), []Check{LLMConfigCheck(s)}, time.Second)
	if AllOK(results) {
		t.Fatalf("expected llm_config check to fail when unset")
	}
}

type fakeClock struct{ synced bool }

func (c fakeClock) Synced() bool { return c.synced }

func TestClockCheck(t *testing.T) {
	ok := RunChecks(context.Background(), []Check{ClockCheck(fakeClock{synced: true})}, time.Second)
	if !AllOK(ok) {
		t.Fatalf("expected clock check to pass when synced")
	}
	bad := RunChecks(context.Background(), []Check{ClockCheck(fakeClock{synced: false})}, time.Second)
	if AllOK(bad) {
		t.Fatalf("expected clock check to fail when unsynced")
	}
}
