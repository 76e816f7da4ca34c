package storage

import "errors"

// Failure modes a storage.Engine/Txn must surface (spec §4.3).
var (
	// ErrNotFound is returned by Get when the key doesn't exist.
	ErrNotFound = errors.New("storage: key not found")
	// ErrConflict is returned by Txn.Commit when an optimistic
	// transaction's read set was invalidated by a concurrent commit.
	// Callers are expected to retry the whole batch (spec §5, §7).
	ErrConflict = errors.New("storage: transaction conflict, retry")
	// ErrCorruption indicates the engine itself reports an unrecoverable
	// integrity failure; this is fatal, never retried (spec §7).
	ErrCorruption = errors.New("storage: corruption")
	// ErrDiscarded is returned by any call made on a Txn after Commit
	// or Discard.
	ErrDiscarded = errors.New("storage: transaction already closed")
)
