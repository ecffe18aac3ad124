// Package web provides the HTTP API server for Stylisten.
package web

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const stateTTL = 5 * time.Minute

// stateEntry binds an OAuth state parameter to the user who initiated
// the link flow.
type stateEntry struct {
	userID    uuid.UUID
	createdAt time.Time
}

// StateStore holds pending OAuth states in memory until the provider
// redirects back. Entries expire after stateTTL.
type StateStore struct {
	mu      sync.Mutex
	pending map[string]stateEntry
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{
		pending: make(map[string]stateEntry),
	}
}

// Create registers a fresh state value for a user and returns it.
func (s *StateStore) Create(userID uuid.UUID) string {
	state := uuid.NewString()

	s.mu.Lock()
	s.pending[state] = stateEntry{userID: userID, createdAt: time.Now()}
	s.sweepLocked()
	s.mu.Unlock()

	return state
}

// Consume resolves a state to its user and removes it. A state is
// single use; unknown or expired states return false.
func (s *StateStore) Consume(state string) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.pending[state]
	if !ok {
		return uuid.Nil, false
	}
	delete(s.pending, state)

	if time.Since(entry.createdAt) > stateTTL {
		return uuid.Nil, false
	}
	return entry.userID, true
}

// sweepLocked drops expired entries. Caller holds the lock.
func (s *StateStore) sweepLocked() {
	cutoff := time.Now().Add(-stateTTL)
	for state, entry := range s.pending {
		if entry.createdAt.Before(cutoff) {
			delete(s.pending, state)
		}
	}
}
