package web

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestStateStoreRoundTrip(t *testing.T) {
	store := NewStateStore()
	userID := uuid.New()

	state := store.Create(userID)
	if state == "" {
		t.Fatal("Create() returned empty state")
	}

	got, ok := store.Consume(state)
	if !ok {
		t.Fatal("Consume() returned false for a fresh state")
	}
	if got != userID {
		t.Errorf("Consume() = %s, want %s", got, userID)
	}
}

func TestStateStoreSingleUse(t *testing.T) {
	store := NewStateStore()
	state := store.Create(uuid.New())

	if _, ok := store.Consume(state); !ok {
		t.Fatal("first Consume() failed")
	}
	if _, ok := store.Consume(state); ok {
		t.Error("second Consume() succeeded, want single use")
	}
}

func TestStateStoreUnknownState(t *testing.T) {
	store := NewStateStore()

	if _, ok := store.Consume("never-issued"); ok {
		t.Error("Consume() accepted an unknown state")
	}
}

func TestStateStoreExpiry(t *testing.T) {
	store := NewStateStore()
	state := store.Create(uuid.New())

	// Backdate the entry past the TTL.
	store.mu.Lock()
	entry := store.pending[state]
	entry.createdAt = time.Now().Add(-stateTTL - time.Second)
	store.pending[state] = entry
	store.mu.Unlock()

	if _, ok := store.Consume(state); ok {
		t.Error("Consume() accepted an expired state")
	}
}

func TestStateStoreSweep(t *testing.T) {
	store := NewStateStore()
	stale := store.Create(uuid.New())

	store.mu.Lock()
	entry := store.pending[stale]
	entry.createdAt = time.Now().Add(-stateTTL - time.Second)
	store.pending[stale] = entry
	store.mu.Unlock()

	// A new Create sweeps expired entries out of the map.
	store.Create(uuid.New())

	store.mu.Lock()
	_, present := store.pending[stale]
	store.mu.Unlock()
	if present {
		t.Error("expired state survived the sweep")
	}
}
