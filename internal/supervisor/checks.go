package supervisor

import (
	"context"
	"fmt"

	"github.com/joaolucaswork/esp32-concierge/internal/config"
	"github.com/joaolucaswork/esp32-concierge/internal/store"
)

// ClockSynced reports whether the real-time clock has synced since
// boot (§4.J startup-ordering: the scheduler must wait on this).
type ClockSynced interface {
	Synced() bool
}

// StoreCheck probes that the persistent store answers a trivial
// read/write round trip (§7: CorruptedPartition triggers safe mode).
func StoreCheck(s store.Store) Check {
	return Check{
		Name: "store",
		Run: func(ctx context.Context) error {
			const probeKey = "probe"
			if err := s.Put(ctx, store.NamespaceBoot, probeKey, []byte("1")); err != nil {
				return fmt.Errorf("store not writable: %w", err)
			}
			if _, err := s.Get(ctx, store.NamespaceBoot, probeKey); err != nil {
				return fmt.Errorf("store not readable: %w", err)
			}
			return nil
		},
	}
}

// ClockCheck probes that the real-time clock is synced.
func ClockCheck(clock ClockSynced) Check {
	return Check{
		Name: "clock",
		Run: func(ctx context.Context) error {
			if !clock.Synced() {
				return fmt.Errorf("clock not yet synced")
			}
			return nil
		},
	}
}

// LLMConfigCheck probes that a usable vendor profile is configured.
func LLMConfigCheck(s store.Store) Check {
	return Check{
		Name: "llm_config",
		Run: func(ctx context.Context) error {
			cfg, err := config.LoadLLM(ctx, s)
			if err != nil {
				return err
			}
			if cfg.Provider == "" || cfg.APIKey == "" {
				return fmt.Errorf("llm vendor profile not configured")
			}
			return nil
		},
	}
}

// ChatConfigCheck probes that a chat-API token is configured. Unlike
// LLMConfigCheck this is advisory only (the local channel still works
// without it), so callers may choose to ignore a failure here.
func ChatConfigCheck(s store.Store) Check {
	return Check{
		Name: "chat_config",
		Run: func(ctx context.Context) error {
			cfg, err := config.LoadChat(ctx, s)
			if err != nil {
				return err
			}
			if cfg.Token == "" {
				return fmt.Errorf("chat-api token not configured")
			}
			return nil
		},
	}
}
