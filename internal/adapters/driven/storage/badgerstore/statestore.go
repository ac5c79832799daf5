// Package badgerstore provides a BadgerDB-backed checkpoint store for agent state.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"

	"github.com/custodia-labs/mce/internal/core/domain"
	"github.com/custodia-labs/mce/internal/core/ports/driven"
)

const (
	keyPrefixState = "state:run:"
	keyLatest      = "state:latest"
)

// Ensure StateStore implements the interface.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore persists agent state checkpoints in BadgerDB.
// Each run is stored as JSON under its own key; a pointer key names the
// most recently saved run.
type StateStore struct {
	db *badger.DB
}

// NewStateStore opens a state store in dataDir.
// If dataDir is empty, defaults to ~/.mce/data/state.
func NewStateStore(dataDir string) (*StateStore, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".mce", "data", "state")
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := badger.Open(badger.DefaultOptions(dataDir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &StateStore{db: db}, nil
}

// NewInMemoryStateStore opens a state store that keeps nothing on disk.
func NewInMemoryStateStore() (*StateStore, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening badger: %w", err)
	}
	return &StateStore{db: db}, nil
}

// SaveState stores or replaces the checkpoint for a run and moves the latest pointer.
func (s *StateStore) SaveState(_ context.Context, state *domain.AgentState) error {
	if state == nil || state.RunID == "" {
		return fmt.Errorf("%w: state needs a run id", domain.ErrInvalidInput)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(keyPrefixState+state.RunID), data); err != nil {
			return fmt.Errorf("storing state: %w", err)
		}
		if err := txn.Set([]byte(keyLatest), []byte(state.RunID)); err != nil {
			return fmt.Errorf("updating latest pointer: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing state to badger: %w", err)
	}
	return nil
}

// LoadState retrieves the checkpoint for a run.
func (s *StateStore) LoadState(_ context.Context, runID string) (*domain.AgentState, error) {
	var state domain.AgentState
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefixState + runID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading state %s: %w", runID, err)
	}
	return state.Clone(), nil
}

// LatestState retrieves the most recently saved checkpoint.
func (s *StateStore) LatestState(ctx context.Context) (*domain.AgentState, error) {
	var runID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyLatest))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			runID = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading latest pointer: %w", err)
	}
	return s.LoadState(ctx, runID)
}

// RunIDs lists every run with a checkpoint, in key order.
func (s *StateStore) RunIDs(_ context.Context) ([]string, error) {
	var ids []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefixState)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			ids = append(ids, string(it.Item().Key()[len(keyPrefixState):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return ids, nil
}

// Close closes the underlying database.
func (s *StateStore) Close() error {
	return s.db.Close()
}
