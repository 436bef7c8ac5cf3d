package store

import (
	"context"
	"fmt"
	"testing"
)

func TestSQLiteStorePutGet(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.Put(ctx, NamespaceUserMemory, "greeting", []byte("hi")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, NamespaceUserMemory, "greeting")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "hi" {
		t.Fatalf("got %q, want %q", got, "hi")
	}
}

func TestSQLiteStoreGetMissing(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := s.Get(context.Background(), NamespaceUserMemory, "missing"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSQLiteStorePutOverwrite(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	_ = s.Put(ctx, NamespaceUserMemory, "k", []byte("v1"))
	_ = s.Put(ctx, NamespaceUserMemory, "k", []byte("v2"))
	got, _ := s.Get(ctx, NamespaceUserMemory, "k")
	if string(got) != "v2" {
		t.Fatalf("got %q, want v2", got)
	}
}

func TestSQLiteStoreDelete(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	_ = s.Put(ctx, NamespaceUserMemory, "k", []byte("v"))
	if err := s.Delete(ctx, NamespaceUserMemory, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, NamespaceUserMemory, "k"); err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound after delete", err)
	}
}

func TestSQLiteStoreIterate(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	_ = s.Put(ctx, NamespaceUserMemory, "a", []byte("1"))
	_ = s.Put(ctx, NamespaceUserMemory, "b", []byte("2"))
	_ = s.Put(ctx, NamespaceChatConfig, "c", []byte("3"))

	next, closer, err := s.Iterate(ctx, NamespaceUserMemory)
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	defer closer()

	seen := map[string]string{}
	for {
		k, v, ok := next()
		if !ok {
			break
		}
		seen[k] = string(v)
	}
	if len(seen) != 2 || seen["a"] != "1" || seen["b"] != "2" {
		t.Fatalf("unexpected iteration result: %#v", seen)
	}
}

func TestSQLiteStorePutCapacityExceeded(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < MaxStoreEntries; i++ {
		key := fmt.Sprintf("k%04d", i)
		if err := s.Put(ctx, NamespaceUserMemory, key, []byte("v")); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	if err := s.Put(ctx, NamespaceUserMemory, "overflow", []byte("v")); err != ErrCapacityExceeded {
		t.Fatalf("got %v, want ErrCapacityExceeded once the partition is full", err)
	}

	// Overwriting an existing key must still succeed at capacity.
	if err := s.Put(ctx, NamespaceUserMemory, "k0000", []byte("v2")); err != nil {
		t.Fatalf("overwrite at capacity: %v", err)
	}
}

func TestSQLiteStoreKeyTooLong(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	err = s.Put(context.Background(), NamespaceUserMemory, "this-key-is-way-too-long", []byte("x"))
	if err == nil {
		t.Fatalf("expected error for oversized key")
	}
}
