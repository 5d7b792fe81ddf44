package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

type record struct {
	payload []byte
	version int64
}

// Store implements usecase.StateStore in process memory.
type Store struct {
	mu          sync.RWMutex
	collections map[domain.Collection]record
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{collections: make(map[domain.Collection]record)}
}

// Load returns a copy of the stored payload and its version.
func (s *Store) Load(_ context.Context, collection domain.Collection) ([]byte, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.collections[collection]
	if !ok {
		return nil, 0, nil
	}
	return append([]byte(nil), r.payload...), r.version, nil
}

// Commit replaces one collection.
func (s *Store) Commit(ctx context.Context, collection domain.Collection, payload []byte, expectedVersion int64) (int64, error) {
	versions, err := s.CommitBatch(ctx, []usecase.CollectionWrite{{
		Collection:      collection,
		Payload:         payload,
		ExpectedVersion: expectedVersion,
	}})
	if err != nil {
		return 0, err
	}
	return versions[0], nil
}

// CommitBatch checks every expected version before replacing anything.
func (s *Store) CommitBatch(ctx context.Context, writes []usecase.CollectionWrite) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, w := range writes {
		if current := s.collections[w.Collection].version; current != w.ExpectedVersion {
			return nil, fmt.Errorf("%w: %s at version %d, expected %d",
				domain.ErrConcurrencyConflict, w.Collection, current, w.ExpectedVersion)
		}
	}

	versions := make([]int64, len(writes))
	for i, w := range writes {
		next := s.collections[w.Collection].version + 1
		s.collections[w.Collection] = record{payload: append([]byte(nil), w.Payload...), version: next}
		versions[i] = next
	}
	return versions, nil
}
