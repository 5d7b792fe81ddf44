package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iho/beanbank/internal/domain"
	"github.com/iho/beanbank/internal/usecase"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
    name       TEXT PRIMARY KEY,
    payload    BLOB     NOT NULL,
    version    INTEGER  NOT NULL CHECK (version > 0),
    updated_at DATETIME NOT NULL
);
`

// Store implements usecase.StateStore on a single SQLite file using the
// pure Go driver.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: open %q: %w", path, err)
	}
	// SQLite is single-writer; one connection also keeps :memory: shared
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.Open: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the payload and version of a collection.
func (s *Store) Load(ctx context.Context, collection domain.Collection) ([]byte, int64, error) {
	var (
		payload []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, version FROM collections WHERE name = ?`, string(collection),
	).Scan(&payload, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load %s: %w", collection, err)
	}
	return payload, version, nil
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

// CommitBatch applies all writes in one transaction.
func (s *Store) CommitBatch(ctx context.Context, writes []usecase.CollectionWrite) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	versions := make([]int64, len(writes))
	for i, w := range writes {
		var res sql.Result
		if w.ExpectedVersion == 0 {
			res, err = tx.ExecContext(ctx,
				`INSERT INTO collections (name, payload, version, updated_at) VALUES (?, ?, 1, ?)
				 ON CONFLICT (name) DO NOTHING`,
				string(w.Collection), w.Payload, now)
		} else {
			res, err = tx.ExecContext(ctx,
				`UPDATE collections SET payload = ?, version = version + 1, updated_at = ?
				 WHERE name = ? AND version = ?`,
				w.Payload, now, string(w.Collection), w.ExpectedVersion)
		}
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", w.Collection, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", w.Collection, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s is not at version %d",
				domain.ErrConcurrencyConflict, w.Collection, w.ExpectedVersion)
		}
		versions[i] = w.ExpectedVersion + 1
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return versions, nil
}
