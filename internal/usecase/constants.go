package usecase

import "time"

const (
	// DefaultCommitTimeout bounds one store commit while the write lock is held.
	DefaultCommitTimeout = 10 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)
