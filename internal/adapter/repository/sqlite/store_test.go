package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_CommitAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	payload, version, err := s.Load(ctx, domain.CollectionOrders)
	require.NoError(t, err)
	assert.Nil(t, payload)
	assert.Zero(t, version)

	v, err := s.Commit(ctx, domain.CollectionOrders, []byte(`[]`), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = s.Commit(ctx, domain.CollectionOrders, []byte(`[{"id":"o1"}]`), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	payload, version, err = s.Load(ctx, domain.CollectionOrders)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"o1"}]`, string(payload))
	assert.Equal(t, int64(2), version)
}

func TestStore_VersionConflicts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Commit(ctx, domain.CollectionMeta, []byte(`{}`), 0)
	require.NoError(t, err)

	tests := []struct {
		name    string
		version int64
	}{
		{name: "create over existing", version: 0},
		{name: "stale", version: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Commit(ctx, domain.CollectionMeta, []byte(`{"x":1}`), tt.version)
			assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
		})
	}

	payload, version, err := s.Load(ctx, domain.CollectionMeta)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(payload))
	assert.Equal(t, int64(1), version)
}

func TestStore_BatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CommitBatch(ctx, []usecase.CollectionWrite{
		{Collection: domain.CollectionAccounts, Payload: []byte(`[]`)},
		{Collection: domain.CollectionDares, Payload: []byte(`[]`), ExpectedVersion: 4},
	})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	_, version, err := s.Load(ctx, domain.CollectionAccounts)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "beanbank.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Commit(ctx, domain.CollectionBets, []byte(`[{"id":"b1"}]`), 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	payload, version, err := reopened.Load(ctx, domain.CollectionBets)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"b1"}]`, string(payload))
	assert.Equal(t, int64(1), version)
}
