package mem

import (
	"github.com/grovedb/grovedb/storage"
)

// txn is an optimistic transaction over Engine. It buffers writes and
// records every key it reads (and the value observed) so Commit can
// detect whether a concurrent transaction committed a conflicting
// write in the meantime (spec §4.3, §5).
type txn struct {
	engine   *Engine
	writable bool
	staged   map[string][]byte
	deleted  map[string]bool
	reads    map[string][]byte
	readMiss map[string]bool
	closed   bool
}

func (t *txn) Get(ns storage.Namespace, p storage.Prefix, key []byte) ([]byte, error) {
	if t.closed {
		return nil, storage.ErrDiscarded
	}
	k := string(storage.EncodeKey(ns, p, key))

	if t.deleted[k] {
		return nil, storage.ErrNotFound
	}
	if v, ok := t.staged[k]; ok {
		return append([]byte{}, v...), nil
	}

	v, ok := t.engine.snapshotGet(k)
	t.recordRead(k, v, ok)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte{}, v...), nil
}

func (t *txn) recordRead(k string, v []byte, ok bool) {
	if t.reads == nil {
		t.reads = make(map[string][]byte)
		t.readMiss = make(map[string]bool)
	}
	if !ok {
		t.readMiss[k] = true
		return
	}
	t.reads[k] = append([]byte{}, v...)
}

func (t *txn) Iterate(ns storage.Namespace, p storage.Prefix, reverse bool, fn func(localKey, value []byte) (bool, error)) error {
	if t.closed {
		return storage.ErrDiscarded
	}
	// Read-your-writes: iterate the committed snapshot, skipping keys
	// staged for deletion; staged new keys are not surfaced mid-batch
	// iteration in this minimal test double (batches sort before apply
	// and the grove layer never iterates and writes to the same
	// namespace within one uncommitted pass).
	return t.engine.Iterate(ns, p, reverse, func(localKey, value []byte) (bool, error) {
		full := string(storage.EncodeKey(ns, p, localKey))
		if t.deleted[full] {
			return true, nil
		}
		return fn(localKey, value)
	})
}

func (t *txn) Put(ns storage.Namespace, p storage.Prefix, key, value []byte) error {
	if t.closed {
		return storage.ErrDiscarded
	}
	k := string(storage.EncodeKey(ns, p, key))
	delete(t.deleted, k)
	t.staged[k] = append([]byte{}, value...)
	return nil
}

func (t *txn) Delete(ns storage.Namespace, p storage.Prefix, key []byte) error {
	if t.closed {
		return storage.ErrDiscarded
	}
	k := string(storage.EncodeKey(ns, p, key))
	delete(t.staged, k)
	t.deleted[k] = true
	return nil
}

func (t *txn) ApplyBatch(b *storage.Batch) error {
	return storage.ApplyBatch(t, b)
}

func (t *txn) Commit() error {
	if t.closed {
		return storage.ErrDiscarded
	}
	t.closed = true

	t.engine.mu.Lock()
	for k, want := range t.reads {
		got, ok := t.engine.data[k]
		if !ok || string(got) != string(want) {
			t.engine.mu.Unlock()
			return storage.ErrConflict
		}
	}
	for k := range t.readMiss {
		if _, ok := t.engine.data[k]; ok {
			t.engine.mu.Unlock()
			return storage.ErrConflict
		}
	}
	t.engine.mu.Unlock()

	for k, v := range t.staged {
		t.engine.put(k, v)
	}
	for k := range t.deleted {
		t.engine.delete(k)
	}
	return nil
}

func (t *txn) Discard() {
	t.closed = true
}
