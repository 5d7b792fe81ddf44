package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/infrastructure/postgres/generated"
	"github.com/iho/beanbank/internal/usecase"
)

type pgxPool interface {
	generated.DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// Store implements usecase.StateStore on the collections table. Each
// collection is one JSONB row guarded by a version column.
type Store struct {
	pool    pgxPool
	queries *generated.Queries
	retrier *Retrier
}

// NewStore creates a new Store.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return newStoreWithPool(pool, NewRetrier(logger))
}

func newStoreWithPool(pool pgxPool, retrier *Retrier) *Store {
	return &Store{
		pool:    pool,
		queries: generated.New(pool),
		retrier: retrier,
	}
}

// Load returns the payload and version of a collection.
func (s *Store) Load(ctx context.Context, collection domain.Collection) ([]byte, int64, error) {
	row, err := s.queries.GetCollection(ctx, string(collection))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("load %s: %w", collection, err)
	}
	return row.Payload, row.Version, nil
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

// CommitBatch applies all writes in one transaction. A stale version rolls
// the whole batch back with domain.ErrConcurrencyConflict.
func (s *Store) CommitBatch(ctx context.Context, writes []usecase.CollectionWrite) ([]int64, error) {
	var versions []int64
	err := s.retrier.Retry(ctx, "commit_batch", func() error {
		var err error
		versions, err = s.commitBatch(ctx, writes)
		return err
	})
	return versions, err
}

func (s *Store) commitBatch(ctx context.Context, writes []usecase.CollectionWrite) ([]int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	q := s.queries.WithTx(tx)
	versions := make([]int64, len(writes))
	for i, w := range writes {
		version, err := writeCollection(ctx, q, w)
		if err != nil {
			return nil, err
		}
		versions[i] = version
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return versions, nil
}

func writeCollection(ctx context.Context, q *generated.Queries, w usecase.CollectionWrite) (int64, error) {
	if w.ExpectedVersion == 0 {
		n, err := q.InsertCollection(ctx, generated.InsertCollectionParams{
			Name:    string(w.Collection),
			Payload: w.Payload,
		})
		if err != nil {
			return 0, fmt.Errorf("insert %s: %w", w.Collection, err)
		}
		if n == 0 {
			return 0, fmt.Errorf("%w: %s already exists", domain.ErrConcurrencyConflict, w.Collection)
		}
		return 1, nil
	}

	version, err := q.UpdateCollection(ctx, generated.UpdateCollectionParams{
		Name:    string(w.Collection),
		Payload: w.Payload,
		Version: w.ExpectedVersion,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s is not at version %d",
				domain.ErrConcurrencyConflict, w.Collection, w.ExpectedVersion)
		}
		return 0, fmt.Errorf("update %s: %w", w.Collection, err)
	}
	return version, nil
}

// EventJournal records change events in the change_events table so the
// feed can be audited after the fact.
type EventJournal struct {
	queries *generated.Queries
}

// NewEventJournal creates a new EventJournal.
func NewEventJournal(pool *pgxpool.Pool) *EventJournal {
	return &EventJournal{queries: generated.New(pool)}
}

// Name identifies the journal as a feed sink.
func (j *EventJournal) Name() string { return "postgres" }

// Publish inserts the event. Replays of a seq are ignored.
func (j *EventJournal) Publish(ctx context.Context, event domain.ChangeEvent) error {
	collections := make([]string, len(event.Collections))
	for i, c := range event.Collections {
		collections[i] = string(c)
	}
	return j.queries.InsertChangeEvent(ctx, generated.InsertChangeEventParams{
		Seq:         event.Seq,
		Type:        event.Type,
		AggregateID: event.AggregateID,
		Collections: collections,
		CreatedAt:   pgtype.Timestamptz{Time: event.At, Valid: true},
	})
}
