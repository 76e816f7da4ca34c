// Package grovedb is GroveDB's public façade: a single entry point
// composing the grove, batch, query, and proof packages into the
// operations spec.md names at its top level (Open, Insert, Get,
// Delete, ApplyBatch, Query, ProveQuery, VerifyQuery, RootHash) plus
// the non-Merk tree-type-specific operations. Grounded on
// processor/processor.go's role in the teacher: a thin struct holding
// a store handle plus one method per externally-visible operation, with
// no business logic duplicated from the packages it composes.
package grovedb

import (
	"log/slog"

	"github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/grovedb/grovedb/batch"
	"github.com/grovedb/grovedb/cost"
	"github.com/grovedb/grovedb/element"
	"github.com/grovedb/grovedb/grove"
	"github.com/grovedb/grovedb/hash"
	"github.com/grovedb/grovedb/multihash"
	"github.com/grovedb/grovedb/proof"
	"github.com/grovedb/grovedb/query"
	"github.com/grovedb/grovedb/storage"
)

// DefaultReferenceHopLimit is the cap spec §4.5 fixes on reference
// resolution chains; Options.ReferenceHopLimit overrides it.
const DefaultReferenceHopLimit = grove.MaxReferenceHops

// DefaultCommitmentMemoSize is the ciphertext payload length a
// CommitmentTree validates inserts against when Options.CommitmentMemoSize
// is left at zero (spec §9).
const DefaultCommitmentMemoSize = 52

// Options configures a GroveDB instance. A zero Options uses every
// documented default; this is a plain struct, not a config file format,
// matching the teacher's style of configuring library code directly
// with flag-backed structs rather than introducing a file format.
type Options struct {
	// ReferenceHopLimit overrides the global reference-resolution hop
	// cap (spec §4.5). Zero means DefaultReferenceHopLimit.
	ReferenceHopLimit int

	// CommitmentMemoSize fixes the ciphertext payload length every
	// CommitmentTree validates inserts against. Zero means
	// DefaultCommitmentMemoSize.
	CommitmentMemoSize int

	// Logger defaults to slog.Default() when nil. It is stored with the
	// options; no GroveDB operation writes to it.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.ReferenceHopLimit <= 0 {
		o.ReferenceHopLimit = DefaultReferenceHopLimit
	}
	if o.CommitmentMemoSize <= 0 {
		o.CommitmentMemoSize = DefaultCommitmentMemoSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// GroveDB is the public handle onto a hierarchy of Merk (and non-Merk)
// subtrees backed by a storage.Engine.
type GroveDB struct {
	engine storage.Engine
	g      *grove.Grove
	opts   Options
}

// Open returns a GroveDB backed directly by engine; every mutation
// auto-commits (spec §5's non-transactional mode).
func Open(engine storage.Engine, opts Options) *GroveDB {
	opts = opts.withDefaults()
	g := grove.Open(engine, opts.CommitmentMemoSize)
	g.SetReferenceHopLimit(opts.ReferenceHopLimit)
	return &GroveDB{engine: engine, g: g, opts: opts}
}

// RootHash returns the grove's current state root (spec §4.6).
func (db *GroveDB) RootHash() (hash.Digest, cost.OperationCost, error) {
	return db.g.RootHash()
}

// StateRootAnchor wraps the current state root as a self-describing
// BLAKE3 multihash (spec's Domain Stack wiring for go-multihash).
func (db *GroveDB) StateRootAnchor() (multihash.StateRoot, cost.OperationCost, error) {
	root, oc, err := db.g.RootHash()
	if err != nil {
		return nil, oc, err
	}
	sr, err := multihash.NewStateRoot(root)
	return sr, oc, err
}

// StateRootChainHash returns the current state root as a chainhash.Hash,
// for callers embedding a GroveDB root in a go-sdk transaction (e.g. an
// OP_RETURN commitment output).
func (db *GroveDB) StateRootChainHash() (chainhash.Hash, cost.OperationCost, error) {
	root, oc, err := db.g.RootHash()
	if err != nil {
		return chainhash.Hash{}, oc, err
	}
	return root.ChainHash(), oc, nil
}

// Insert stores e at (path,key), failing if onlyIfAbsent is set and a
// value already exists there (spec §4.6's InsertElement).
func (db *GroveDB) Insert(path grove.Path, key []byte, e element.Element, onlyIfAbsent bool) (cost.OperationCost, error) {
	return db.g.InsertElement(path, key, e, onlyIfAbsent)
}

// Get reads the element at (path,key).
func (db *GroveDB) Get(path grove.Path, key []byte) (element.Element, cost.OperationCost, error) {
	return db.g.GetElement(path, key)
}

// Delete removes the element at (path,key).
func (db *GroveDB) Delete(path grove.Path, key []byte) (cost.OperationCost, error) {
	return db.g.DeleteElement(path, key)
}

// ApplyBatch runs a multi-op batch atomically against db's grove (spec
// §4.7): every write stages against one fresh transaction, discarded
// wholesale on any op's failure.
func (db *GroveDB) ApplyBatch(ops []batch.QualifiedGroveDbOp) (cost.OperationCost, error) {
	b, err := batch.NewBatch(ops)
	if err != nil {
		var oc cost.OperationCost
		return oc, err
	}
	return b.Apply(db.g)
}

// Query evaluates pq against db's grove, descending through subqueries
// exactly as spec §6 describes.
func (db *GroveDB) Query(pq query.PathQuery) ([]query.Result, cost.OperationCost, error) {
	return query.Evaluate(db.g, pq)
}

// ProveQuery evaluates pq and additionally produces a GroveDBProof an
// external verifier can check against a claimed root without storage
// access (spec §4.9.2).
func (db *GroveDB) ProveQuery(pq query.PathQuery) (proof.GroveDBProof, []query.Result, cost.OperationCost, error) {
	return proof.ProveQuery(db.g, pq)
}

// VerifyQuery checks p against expectedRoot and returns the results it
// discloses, performing no storage access.
func VerifyQuery(p proof.GroveDBProof, pq query.PathQuery, expectedRoot hash.Digest) ([]query.Result, error) {
	return proof.VerifyQuery(p, pq, expectedRoot)
}

// Transaction stages a multi-step sequence of GroveDB operations
// against one underlying storage.Txn, committed or discarded as a unit
// (spec §5). Use StartTransaction rather than constructing directly.
type Transaction struct {
	*GroveDB
	txn storage.Txn
}

// StartTransaction begins a fresh writable transaction on db's engine
// and returns a Transaction whose Insert/Get/Delete/ApplyBatch/Query
// calls stage against it until Commit or Discard.
func (db *GroveDB) StartTransaction() (*Transaction, error) {
	tg, txn, err := db.g.BeginTxn()
	if err != nil {
		return nil, err
	}
	return &Transaction{
		GroveDB: &GroveDB{engine: db.engine, g: tg, opts: db.opts},
		txn:     txn,
	}, nil
}

// Commit finalizes every staged write atomically.
func (tx *Transaction) Commit() error { return tx.txn.Commit() }

// Discard abandons every staged write.
func (tx *Transaction) Discard() { tx.txn.Discard() }
