package badgerkv

import (
	"github.com/dgraph-io/badger/v4"

	"github.com/grovedb/grovedb/storage"
)

// transaction adapts *badger.Txn to storage.Txn. Badger implements
// serializable snapshot isolation internally: Commit returns
// badger.ErrConflict if any key this transaction read was written by a
// transaction that committed first, which is exactly the optimistic
// concurrency contract spec §4.3/§5 asks for.
type transaction struct {
	txn      *badger.Txn
	writable bool
	closed   bool
}

func (t *transaction) Get(ns storage.Namespace, p storage.Prefix, key []byte) ([]byte, error) {
	if t.closed {
		return nil, storage.ErrDiscarded
	}
	item, err := t.txn.Get(storage.EncodeKey(ns, p, key))
	if err == badger.ErrKeyNotFound {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var out []byte
	err = item.Value(func(val []byte) error {
		out = append([]byte{}, val...)
		return nil
	})
	return out, err
}

func (t *transaction) Iterate(ns storage.Namespace, p storage.Prefix, reverse bool, fn func(localKey, value []byte) (bool, error)) error {
	if t.closed {
		return storage.ErrDiscarded
	}
	scanPrefix := storage.EncodePrefixScan(ns, p)

	opts := badger.DefaultIteratorOptions
	opts.Reverse = reverse
	opts.Prefix = scanPrefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	seek := scanPrefix
	if reverse {
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
}

func (t *transaction) Put(ns storage.Namespace, p storage.Prefix, key, value []byte) error {
	if t.closed {
		return storage.ErrDiscarded
	}
	return t.txn.Set(storage.EncodeKey(ns, p, key), value)
}

func (t *transaction) Delete(ns storage.Namespace, p storage.Prefix, key []byte) error {
	if t.closed {
		return storage.ErrDiscarded
	}
	return t.txn.Delete(storage.EncodeKey(ns, p, key))
}

func (t *transaction) ApplyBatch(b *storage.Batch) error {
	return storage.ApplyBatch(t, b)
}

func (t *transaction) Commit() error {
	if t.closed {
		return storage.ErrDiscarded
	}
	t.closed = true
	err := t.txn.Commit()
	if err == badger.ErrConflict {
		return storage.ErrConflict
	}
	return err
}

func (t *transaction) Discard() {
	if t.closed {
		return
	}
	t.closed = true
	t.txn.Discard()
}
