package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/beanbank/internal/domain"
	pginfra "github.com/iho/beanbank/internal/infrastructure/postgres"
	"github.com/iho/beanbank/internal/usecase"
)

// newTestPool connects to DATABASE_URL and applies migrations. Tests skip
// when no database is configured.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	if err := pginfra.RunMigrations(dbURL, "../../../infrastructure/postgres/migrations", zerolog.Nop()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pginfra.NewPool(ctx, dbURL, 4, 1)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, "TRUNCATE collections, change_events"); err != nil {
		t.Fatalf("failed to truncate: %v", err)
	}
	return pool
}

func TestStore_CommitAndLoad(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestPool(t), zerolog.Nop())

	payload, version, err := s.Load(ctx, domain.CollectionAccounts)
	require.NoError(t, err)
	assert.Nil(t, payload)
	assert.Zero(t, version)

	v, err := s.Commit(ctx, domain.CollectionAccounts, []byte(`[]`), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = s.Commit(ctx, domain.CollectionAccounts, []byte(`[{"id":"u1"}]`), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)

	payload, version, err = s.Load(ctx, domain.CollectionAccounts)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"u1"}]`, string(payload))
	assert.Equal(t, int64(2), version)
}

func TestStore_ConflictsRollBackTheBatch(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newTestPool(t), zerolog.Nop())

	_, err := s.Commit(ctx, domain.CollectionMeta, []byte(`{}`), 0)
	require.NoError(t, err)

	_, err = s.Commit(ctx, domain.CollectionMeta, []byte(`{}`), 0)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	_, err = s.CommitBatch(ctx, []usecase.CollectionWrite{
		{Collection: domain.CollectionBets, Payload: []byte(`[]`), ExpectedVersion: 0},
		{Collection: domain.CollectionMeta, Payload: []byte(`{"x":1}`), ExpectedVersion: 5},
	})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)

	_, version, err := s.Load(ctx, domain.CollectionBets)
	require.NoError(t, err)
	assert.Zero(t, version)
}

func TestEventJournal_Publish(t *testing.T) {
	ctx := context.Background()
	pool := newTestPool(t)
	j := NewEventJournal(pool)

	event := domain.ChangeEvent{
		Seq:         1,
		Type:        domain.EventTypeTransferPosted,
		AggregateID: "tx-1",
		Collections: []domain.Collection{domain.CollectionAccounts, domain.CollectionTransactions},
		At:          time.Now().UTC(),
	}
	require.NoError(t, j.Publish(ctx, event))
	require.NoError(t, j.Publish(ctx, event), "replays are ignored")

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT COUNT(*) FROM change_events").Scan(&count))
	assert.Equal(t, 1, count)
}
