package config

import (
	"context"
	"strconv"
	"time"

	"github.com/joaolucaswork/esp32-concierge/internal/store"
)

const keyTickSecs = "tick_secs"

// DefaultTickSeconds mirrors scheduler.DefaultTick without importing
// internal/scheduler (config stays a leaf package).
const DefaultTickSeconds = 60

// SchedulerTick reads the operator-tunable SCHEDULER_TICK override
// (key tick_secs in the scheduler namespace), defaulting to DefaultTickSeconds.
func SchedulerTick(ctx context.Context, s store.Store) (time.Duration, error) {
	raw, err := s.Get(ctx, store.NamespaceScheduler, keyTickSecs)
	if err == store.ErrNotFound {
		return DefaultTickSeconds * time.Second, nil
	}
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(string(raw))
	if convErr != nil || n <= 0 {
		return DefaultTickSeconds * time.Second, nil
	}
	return time.Duration(n) * time.Second, nil
}

// SetSchedulerTick persists an override for the tick interval.
func SetSchedulerTick(ctx context.Context, s store.Store, d time.Duration) error {
	secs := int(d / time.Second)
	if secs <= 0 {
		secs = DefaultTickSeconds
	}
	return s.Put(ctx, store.NamespaceScheduler, keyTickSecs, []byte(strconv.Itoa(secs)))
}
