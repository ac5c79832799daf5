package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore is an in-memory implementation of driven.StateStore.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]*domain.AgentState
	latest string
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]*domain.AgentState),
	}
}

// SaveState stores or replaces the checkpoint for a run.
func (s *StateStore) SaveState(_ context.Context, state *domain.AgentState) error {
	if state == nil || state.RunID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.RunID] = state.Clone()
	s.latest = state.RunID
	return nil
}

// LoadState retrieves the checkpoint for a run.
func (s *StateStore) LoadState(_ context.Context, runID string) (*domain.AgentState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return state.Clone(), nil
}

// LatestState retrieves the most recently saved checkpoint.
func (s *StateStore) LatestState(ctx context.Context) (*domain.AgentState, error) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest == "" {
		return nil, domain.ErrNotFound
	}
	return s.LoadState(ctx, latest)
}

// Close releases resources (no-op for memory store).
func (s *StateStore) Close() error {
	return nil
}
