package config

import (
	"context"
	"strconv"

	"github.com/joaolucaswork/esp32-concierge/internal/store"
)

const keyBootCount = "count"

// BootCount reads consecutive-failed-boots, defaulting to 0 when unset.
func BootCount(ctx context.Context, s store.Store) (int, error) {
	raw, err := s.Get(ctx, store.NamespaceBoot, keyBootCount)
	if err == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(string(raw))
	if convErr != nil {
		return 0, nil
	}
	return n, nil
}

// SetBootCount persists consecutive-failed-boots.
func SetBootCount(ctx context.Context, s store.Store, n int) error {
	return s.Put(ctx, store.NamespaceBoot, keyBootCount, []byte(strconv.Itoa(n)))
}
