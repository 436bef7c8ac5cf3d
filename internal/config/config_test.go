package config

import (
	"context"
	"testing"
	"time"

	"github.com/joaolucaswork/esp32-concierge/internal/store"
	"github.com/joaolucaswork/esp32-concierge/pkg/models"
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

func TestLLMRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := LLM{Provider: models.VendorOpenRouter, APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: "https://openrouter.ai/api/v1"}
	if err := SaveLLM(ctx, s, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadLLM(ctx, s)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestLLMRejectsUnknownProvider(t *testing.T) {
	s := newTestStore(t)
	err := SaveLLM(context.Background(), s, LLM{Provider: "not-a-vendor", APIKey: "x"})
	if err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestLLMRejectsEmptyAPIKey(t *testing.T) {
	s := newTestStore(t)
	err := SaveLLM(context.Background(), s, LLM{Provider: models.VendorAnthropic})
	if err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestChatRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := Chat{Token: "bot-token", ChatID: "900719925474099"}
	if err := SaveChat(ctx, s, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := LoadChat(ctx, s)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestChatRejectsZeroChatID(t *testing.T) {
	s := newTestStore(t)
	err := SaveChat(context.Background(), s, Chat{Token: "t", ChatID: "0"})
	if err == nil {
		t.Fatalf("expected error for zero chat id")
	}
}

func TestBootCountDefaultsToZero(t *testing.T) {
	s := newTestStore(t)
	n, err := BootCount(context.Background(), s)
	if err != nil || n != 0 {
		t.Fatalf("got %d, %v", n, err)
	}
}

func TestBootCountRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := SetBootCount(ctx, s, 2); err != nil {
		t.Fatalf("set: %v", err)
	}
	n, err := BootCount(ctx, s)
	if err != nil || n != 2 {
		t.Fatalf("got %d, %v", n, err)
	}
}

func TestSchedulerTickDefaultsTo60s(t *testing.T) {
	s := newTestStore(t)
	d, err := SchedulerTick(context.Background(), s)
	if err != nil || d != 60*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
}

func TestSchedulerTickOverride(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := SetSchedulerTick(ctx, s, 30*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	d, err := SchedulerTick(ctx, s)
	if err != nil || d != 30*time.Second {
		t.Fatalf("got %v, %v", d, err)
	}
}
