package session

import (
	"context"
	"sync"

	"github.com/sanasol-ws/dualauth/internal/clock"
)

// MemoryStore is an in-process session registry. Expired records are
// dropped lazily on read.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
	grants   map[string]*GrantRecord
	clock    clock.Clock
}

// MemoryStoreConfig configures the in-memory registry
type MemoryStoreConfig struct {
	// Clock is an optional time source (defaults to system clock)
	Clock clock.Clock
}

// NewMemoryStore creates an empty in-memory session registry
func NewMemoryStore(cfg MemoryStoreConfig) *MemoryStore {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &MemoryStore{
		sessions: make(map[string]*SessionRecord),
		grants:   make(map[string]*GrantRecord),
		clock:    clk,
	}
}

// PutSession implements Store
func (s *MemoryStore) PutSession(_ context.Context, record *SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.sessions[record.PlayerID] = &copied
	return nil
}

// GetSession implements Store
func (s *MemoryStore) GetSession(_ context.Context, playerID string) (*SessionRecord, bool, error) {
	s.mu.RLock()
	record, ok := s.sessions[playerID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.expired(record.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, playerID)
		s.mu.Unlock()
		return nil, false, nil
	}
	copied := *record
	return &copied, true, nil
}

// DeleteSession implements Store
func (s *MemoryStore) DeleteSession(_ context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, playerID)
	return nil
}

// PutGrant implements Store
func (s *MemoryStore) PutGrant(_ context.Context, record *GrantRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *record
	s.grants[record.TokenID] = &copied
	return nil
}

// GetGrant implements Store
func (s *MemoryStore) GetGrant(_ context.Context, tokenID string) (*GrantRecord, bool, error) {
	s.mu.RLock()
	record, ok := s.grants[tokenID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.expired(record.ExpiresAt) {
		s.mu.Lock()
		delete(s.grants, tokenID)
		s.mu.Unlock()
		return nil, false, nil
	}
	copied := *record
	return &copied, true, nil
}

// DeleteGrant implements Store
func (s *MemoryStore) DeleteGrant(_ context.Context, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.grants, tokenID)
	return nil
}

// Close implements Store
func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) expired(expiresAt int64) bool {
	return expiresAt != 0 && s.clock.Now().Unix() >= expiresAt
}
