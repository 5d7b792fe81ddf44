package usecase

import (
	"context"
	"time"

	"github.com/iho/beanbank/internal/domain"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// CollectionWrite is one collection replacement inside a commit.
// ExpectedVersion 0 means the collection must not exist yet.
type CollectionWrite struct {
	Collection      domain.Collection
	Payload         []byte
	ExpectedVersion int64
}

// StateStore persists core state as versioned collections.
type StateStore interface {
	// Load returns the payload and version of a collection. A missing
	// collection returns a nil payload and version 0.
	Load(ctx context.Context, collection domain.Collection) ([]byte, int64, error)
	// Commit atomically replaces one collection, failing with
	// domain.ErrConcurrencyConflict when expectedVersion is stale.
	Commit(ctx context.Context, collection domain.Collection, payload []byte, expectedVersion int64) (int64, error)
	// CommitBatch applies all writes or none and returns the new versions
	// in write order.
	CommitBatch(ctx context.Context, writes []CollectionWrite) ([]int64, error)
}

// ChangePublisher receives a notification after every committed command.
// Publish must not block.
type ChangePublisher interface {
	Publish(event domain.ChangeEvent)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key whose request did not succeed so it can be retried.
	Release(ctx context.Context, key string) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the wall clock in UTC.
var SystemClock Clock = systemClock{}
