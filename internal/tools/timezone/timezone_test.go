package timezone

import (
	"context"
	"encoding/json"
	"testing"

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

func TestSetTimezoneValid(t *testing.T) {
	s := newTestStore(t)
	tool := &SetTool{Store: s}
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"timezone":"America/Los_Angeles"}`))
	if err != nil || result.IsError {
		t.Fatalf("set: %v %+v", err, result)
	}
	loc := Load(context.Background(), s)
	if loc.String() != "America/Los_Angeles" {
		t.Fatalf("got %q", loc.String())
	}
}

func TestSetTimezoneInvalid(t *testing.T) {
	s := newTestStore(t)
	tool := &SetTool{Store: s}
	result, _ := tool.Execute(context.Background(), json.RawMessage(`{"timezone":"Not/A_Zone"}`))
	if !result.IsError {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestLoadDefaultsToUTC(t *testing.T) {
	s := newTestStore(t)
	loc := Load(context.Background(), s)
	if loc != nil && loc.String() != "UTC" {
		t.Fatalf("expected UTC default, got %q", loc.String())
	}
}
