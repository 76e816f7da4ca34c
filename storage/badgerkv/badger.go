// Package badgerkv is the BadgerDB-backed storage.Engine: GroveDB's
// concrete binding to the ordered, transactional KV engine spec §2.3
// and §4.3 describe as an external collaborator. Adapted from
// kvstore/badger.Store, generalized from a flat KVStore to the four
// namespace-scoped, prefix-isolated, optimistically-transactional
// contract storage.Engine requires.
package badgerkv

import (
	"errors"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/grovedb/grovedb/storage"
)

// ErrDataDirRequired is returned by Open when Config.DataDir is empty.
var ErrDataDirRequired = errors.New("badgerkv: DataDir is required")

// Engine is a BadgerDB-backed storage.Engine.
type Engine struct {
	db  *badger.DB
	log *slog.Logger
}

// Config holds configuration for the BadgerDB-backed engine.
type Config struct {
	// DataDir is the directory BadgerDB stores its files in.
	DataDir string
	// Logger defaults to slog.Default() when nil. It is stored on the
	// Engine; no Engine operation writes to it.
	Logger *slog.Logger
}

// Open creates or opens a BadgerDB-backed storage.Engine.
func Open(cfg Config) (*Engine, error) {
	if cfg.DataDir == "" {
		return nil, ErrDataDirRequired
	}

	opts := badger.DefaultOptions(cfg.DataDir)
	opts = opts.WithLogger(nil) // badger's own verbose logger is disabled

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{db: db, log: logger}, nil
}

// Get implements storage.Engine.
func (e *Engine) Get(ns storage.Namespace, p storage.Prefix, key []byte) ([]byte, error) {
	k := storage.EncodeKey(ns, p, key)
	var out []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Iterate implements storage.Engine.
func (e *Engine) Iterate(ns storage.Namespace, p storage.Prefix, reverse bool, fn func(localKey, value []byte) (bool, error)) error {
	scanPrefix := storage.EncodePrefixScan(ns, p)
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = reverse
		opts.Prefix = scanPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := scanPrefix
		if reverse {
			// Badger's reverse iteration seeks from the largest key <=
			// seek; append 0xff bytes so we start past every key with
			// this prefix.
			seek = append(append([]byte{}, scanPrefix...), 0xff)
		}

		for it.Seek(seek); it.ValidForPrefix(scanPrefix); it.Next() {
			item := it.Item()
			full := item.KeyCopy(nil)
			local := full[len(scanPrefix):]
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			cont, err := fn(local, val)
			if err != nil {
				return err
			}
			if !cont {
				break
			}
		}
		return nil
	})
}

// Begin implements storage.Engine.
func (e *Engine) Begin(writable bool) (storage.Txn, error) {
	txn := e.db.NewTransaction(writable)
	return &transaction{txn: txn, writable: writable}, nil
}

// Close implements storage.Engine.
func (e *Engine) Close() error {
	return e.db.Close()
}

// RunGC runs BadgerDB's value-log garbage collection, unrelated to
// GroveDB's own history, kept for operational parity with the teacher's
// kvstore/badger.Store.RunGC.
func (e *Engine) RunGC(discardRatio float64) error {
	err := e.db.RunValueLogGC(discardRatio)
	if err == badger.ErrNoRewrite {
		return nil
	}
	return err
}
