// Package mem is an in-memory storage.Engine, adapted from
// kvstore/memory.Store, used by GroveDB's own tests and available to
// callers that want a throwaway grove with no BadgerDB dependency.
package mem

import (
	"bytes"
	"sort"
	"sync"

	"github.com/grovedb/grovedb/storage"
)

// Engine is an in-memory storage.Engine backed by a sorted map. Unlike
// the teacher's kvstore/memory.Store (a bare sync.Map keyed by hex
// strings, no ordering), GroveDB's query/proof layers need ordered
// iteration (spec §4.3), so Engine keeps keys sorted under a mutex
// instead.
type Engine struct {
	mu   sync.RWMutex
	data map[string][]byte
	keys [][]byte // kept sorted
}

// New creates an empty in-memory Engine.
func New() *Engine {
	return &Engine{data: make(map[string][]byte)}
}

func (e *Engine) Get(ns storage.Namespace, p storage.Prefix, key []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.data[string(storage.EncodeKey(ns, p, key))]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte{}, v...), nil
}

func (e *Engine) Iterate(ns storage.Namespace, p storage.Prefix, reverse bool, fn func(localKey, value []byte) (bool, error)) error {
	e.mu.RLock()
	scanPrefix := storage.EncodePrefixScan(ns, p)

	var matched [][]byte
	for _, k := range e.keys {
		if bytes.HasPrefix(k, scanPrefix) {
			matched = append(matched, k)
		}
	}
	if reverse {
		sort.Slice(matched, func(i, j int) bool { return bytes.Compare(matched[i], matched[j]) > 0 })
	}

	type kv struct {
		local []byte
		value []byte
	}
	snapshot := make([]kv, 0, len(matched))
	for _, k := range matched {
		v := e.data[string(k)]
		snapshot = append(snapshot, kv{local: append([]byte{}, k[len(scanPrefix):]...), value: append([]byte{}, v...)})
	}
	e.mu.RUnlock()

	for _, item := range snapshot {
		cont, err := fn(item.local, item.value)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

func (e *Engine) Begin(writable bool) (storage.Txn, error) {
	return &txn{engine: e, staged: make(map[string][]byte), deleted: make(map[string]bool)}, nil
}

func (e *Engine) Close() error { return nil }

// put/delete are the low-level primitives a committing transaction uses
// to mutate the engine while keeping e.keys sorted.
func (e *Engine) put(key string, value []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.data[key]; !exists {
		idx := sort.Search(len(e.keys), func(i int) bool { return string(e.keys[i]) >= key })
		e.keys = append(e.keys, nil)
		copy(e.keys[idx+1:], e.keys[idx:])
		e.keys[idx] = []byte(key)
	}
	e.data[key] = value
}

func (e *Engine) delete(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.data[key]; !exists {
		return
	}
	delete(e.data, key)
	idx := sort.Search(len(e.keys), func(i int) bool { return string(e.keys[i]) >= key })
	if idx < len(e.keys) && string(e.keys[idx]) == key {
		e.keys = append(e.keys[:idx], e.keys[idx+1:]...)
	}
}

func (e *Engine) snapshotGet(key string) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.data[key]
	return v, ok
}
