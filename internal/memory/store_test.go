package memory

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	if _, found, _ := store.Get(ctx, "missing"); found {
		t.Error("Expected miss for unknown key")
	}

	if err := store.Set(ctx, "memory:window:chat-1", []byte("payload"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	data, found, err := store.Get(ctx, "memory:window:chat-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !found {
		t.Fatal("Expected hit after set")
	}
	if string(data) != "payload" {
		t.Errorf("Expected payload, got %q", data)
	}
}

func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	store.Set(ctx, "k", []byte("v"), 20*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if _, found, _ := store.Get(ctx, "k"); found {
		t.Error("Expected key to expire")
	}
}

func TestMemoryStore_DeleteAndKeys(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	store.Set(ctx, "memory:window:a", []byte("1"), time.Hour)
	store.Set(ctx, "memory:summary:a", []byte("2"), time.Hour)
	store.Set(ctx, "other:b", []byte("3"), time.Hour)

	keys, err := store.Keys(ctx, "memory:")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("Expected 2 memory keys, got %d: %v", len(keys), keys)
	}

	if err := store.Delete(ctx, "memory:window:a", "memory:summary:a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	keys, _ = store.Keys(ctx, "memory:")
	if len(keys) != 0 {
		t.Errorf("Expected no memory keys after delete, got %v", keys)
	}

	// Deleting absent keys is not an error.
	if err := store.Delete(ctx, "memory:window:a"); err != nil {
		t.Errorf("Delete of absent key failed: %v", err)
	}
}
