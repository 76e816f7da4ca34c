package storage

// Engine is the contract the core consumes from the underlying ordered
// KV engine (spec §4.3): out of scope to implement generally, but
// GroveDB ships one BadgerDB-backed engine (badgerkv.Engine) and one
// in-memory engine for tests (mem.Engine), both satisfying this
// interface.
//
// Engine itself serves reads outside of any transaction (the "last
// committed state" view, spec §5); writes always go through a Txn.
type Engine interface {
	// Get reads one value in namespace ns at the global key; returns
	// ErrNotFound if absent.
	Get(ns Namespace, p Prefix, key []byte) ([]byte, error)

	// Iterate walks every key with the given namespace/prefix scope in
	// raw key order (or reverse), calling fn(localKey, value) for each.
	// fn returning false stops iteration early.
	Iterate(ns Namespace, p Prefix, reverse bool, fn func(localKey, value []byte) (bool, error)) error

	// Begin starts a new transaction. A writable transaction is an
	// optimistic transaction per spec §4.3/§5: conflicting concurrent
	// writes are detected at Commit and surfaced as ErrConflict.
	Begin(writable bool) (Txn, error)

	// Close releases the engine's resources.
	Close() error
}

// Txn is a transactional (writable) or snapshot (read-only) view over
// an Engine. Writes are buffered until Commit (spec §4.3: "writes
// buffered until commit"); reads observe the transaction's own writes
// layered over the snapshot taken at Begin (read-your-writes, spec §5).
type Txn interface {
	Get(ns Namespace, p Prefix, key []byte) ([]byte, error)
	Iterate(ns Namespace, p Prefix, reverse bool, fn func(localKey, value []byte) (bool, error)) error

	Put(ns Namespace, p Prefix, key, value []byte) error
	Delete(ns Namespace, p Prefix, key []byte) error

	// ApplyBatch stages every op in b against this transaction.
	ApplyBatch(b *Batch) error

	// Commit finalizes the transaction. Returns ErrConflict if the
	// optimistic concurrency check fails; the whole batch must be
	// retried against fresh state (spec §5, §7).
	Commit() error

	// Discard abandons every staged write. Safe to call after Commit
	// (no-op) or multiple times.
	Discard()
}
