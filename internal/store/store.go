// Package store implements the namespaced string/blob key-value contract
// (§4.A) on top of a pure-Go embedded SQLite database, so writes are
// durable before Put returns and the table survives reboot.
package store

import (
	"context"
	"errors"
)

// Sentinel failure modes (§4.A).
var (
	ErrNotFound          = errors.New("store: key not found")
	ErrCapacityExceeded  = errors.New("store: capacity exceeded")
	ErrCorruptedPartition = errors.New("store: partition corrupted")
)

// Max key length per the key-size contract (§4.A).
const MaxKeyBytes = 15

// MaxStoreEntries bounds the total number of records the partition will
// hold, standing in for the fixed-size flash partition a real device
// reserves for this store (§4.A: CapacityExceeded is a store-level
// failure mode, not a per-tool policy).
const MaxStoreEntries = 512

// Known namespaces (§4.A, §6).
const (
	NamespaceUserMemory   = "u"
	NamespaceChatConfig   = "tc"
	NamespaceLLMConfig    = "cc"
	NamespaceScheduler    = "cron"
	NamespaceTimezone     = "tz"
	NamespaceBoot         = "boot"
	NamespaceUserTool     = "ut"
)

// Store is the namespaced KV contract every component depends on.
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	Iterate(ctx context.Context, namespace string) (iter func() (key string, value []byte, ok bool), closer func(), err error)
	Close() error
}
